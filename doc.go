// Package authcore provides a multi-channel authentication engine for
// client applications: phone and email passcode verification, server
// token acquisition, a locally hashed PIN credential, and an
// auto-locking session, coordinated by a guard-driven flow machine.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]; flow transitions are
// serialized internally.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder],
// [Config], flow value types (FlowType, Step, StepData, StepResult),
// and the collaborator interfaces ([VerificationService],
// [token.Issuer], [DeviceProvider]). Internal coordination lives in
// the sub-packages: kv (persistence), pin (credential), token
// (server tokens), session (local window), and internal/audit
// (event dispatch).
//
// # What this package must NOT do
//
//   - Perform network transport itself. OTP delivery and token
//     issuance go through the injected collaborators.
//   - Verify token signatures. Tokens are opaque server artifacts;
//     only the expiry claim is inspected locally.
//   - Store a PIN in recoverable form. Only the PBKDF2 record is
//     persisted.
//
// # Flow contract
//
// Every transition rebuilds the authentication context from the
// component sources of truth and scans the active flow's step table
// forward for the first step whose guard accepts that context. Steps
// are never revisited within a flow; a context no remaining step
// accepts surfaces as [ErrDeadEnd].
package authcore
