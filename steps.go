package authcore

// guardFunc is a boolean predicate over the context snapshot deciding a
// step's eligibility. A nil guard means always eligible.
type guardFunc func(FlowContext) bool

// stepDescriptor pairs a step with its guard. The ordered descriptor
// list per flow type replaces what would otherwise be deep nested
// conditionals: each guard is independently unit-testable, and table
// order is priority — the first eligible step wins, so phone always
// resolves before email is ever offered.
type stepDescriptor struct {
	Step  Step
	Guard guardFunc
}

func (d stepDescriptor) eligible(fc FlowContext) bool {
	return d.Guard == nil || d.Guard(fc)
}

func otpPending(fc FlowContext) bool {
	return !fc.OtpExpiry.IsZero() && fc.Now.Before(fc.OtpExpiry)
}

func emailOtpPending(fc FlowContext) bool {
	return !fc.EmailOtpExpiry.IsZero() && fc.Now.Before(fc.EmailOtpExpiry)
}

func guardPhoneEntry(fc FlowContext) bool {
	return !fc.PhoneValidated && !otpPending(fc)
}

func guardPhoneOtp(fc FlowContext) bool {
	return !fc.PhoneValidated
}

func guardEmailEntry(fc FlowContext) bool {
	return fc.PhoneValidated && !fc.EmailVerified && !emailOtpPending(fc)
}

func guardEmailOtp(fc FlowContext) bool {
	return fc.PhoneValidated && !fc.EmailVerified
}

func guardTokenAcquisition(fc FlowContext) bool {
	return fc.PhoneValidated && fc.EmailVerified && !fc.TokenValid
}

func guardUserProfile(fc FlowContext) bool {
	return fc.TokenValid && !fc.profileComplete()
}

func guardPinSetup(fc FlowContext) bool {
	return fc.TokenValid && !fc.PinSet
}

func guardPinSetupSignup(fc FlowContext) bool {
	return fc.TokenValid && fc.profileComplete() && !fc.PinSet
}

// guardPinSetupForgot ignores PinSet: FORGOT_PIN revisits setup even
// when a PIN already exists, overwriting it.
func guardPinSetupForgot(fc FlowContext) bool {
	return fc.TokenValid && !fc.PinVerified
}

func guardPinEntry(fc FlowContext) bool {
	return fc.TokenValid && fc.PinSet && !fc.PinVerified
}

func guardAuthenticated(fc FlowContext) bool {
	return fc.TokenValid && fc.PinSet && fc.PinVerified
}

var signupSteps = []stepDescriptor{
	{StepPhoneEntry, guardPhoneEntry},
	{StepPhoneOtpPending, guardPhoneOtp},
	{StepEmailEntryPending, guardEmailEntry},
	{StepEmailOtpPending, guardEmailOtp},
	{StepTokenAcquisition, guardTokenAcquisition},
	{StepUserProfilePending, guardUserProfile},
	{StepPinSetupPending, guardPinSetupSignup},
	{StepPinEntryPending, guardPinEntry},
	{StepAuthenticated, guardAuthenticated},
}

var signinSteps = []stepDescriptor{
	{StepPhoneEntry, guardPhoneEntry},
	{StepPhoneOtpPending, guardPhoneOtp},
	{StepEmailEntryPending, guardEmailEntry},
	{StepEmailOtpPending, guardEmailOtp},
	{StepTokenAcquisition, guardTokenAcquisition},
	{StepPinSetupPending, guardPinSetup},
	{StepPinEntryPending, guardPinEntry},
	{StepAuthenticated, guardAuthenticated},
}

var forgotPinSteps = []stepDescriptor{
	{StepPhoneEntry, guardPhoneEntry},
	{StepPhoneOtpPending, guardPhoneOtp},
	{StepEmailEntryPending, guardEmailEntry},
	{StepEmailOtpPending, guardEmailOtp},
	{StepTokenAcquisition, guardTokenAcquisition},
	{StepPinSetupPending, guardPinSetupForgot},
	{StepAuthenticated, guardAuthenticated},
}

func stepTable(t FlowType) []stepDescriptor {
	switch t {
	case FlowSignup:
		return signupSteps
	case FlowSignin:
		return signinSteps
	case FlowForgotPin:
		return forgotPinSteps
	}
	return nil
}

// firstEligible returns the index of the first step whose guard passes,
// or -1.
func firstEligible(steps []stepDescriptor, fc FlowContext) int {
	for i, d := range steps {
		if d.eligible(fc) {
			return i
		}
	}
	return -1
}

// nextEligible scans forward from fromIndex+1 for the first passing
// guard. Transitions never move backwards; -1 signals a dead end.
func nextEligible(steps []stepDescriptor, fromIndex int, fc FlowContext) int {
	for i := fromIndex + 1; i < len(steps); i++ {
		if steps[i].eligible(fc) {
			return i
		}
	}
	return -1
}
