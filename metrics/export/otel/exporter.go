package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/moaaz-s/authcore"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is the slice of the engine the exporter reads.
// Satisfied by [authcore.Engine].
type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	id   authcore.MetricID
	name string
	help string
}

// counterDefs fixes the exported instrument names. Order is stable so
// dashboards survive upgrades.
var counterDefs = []counterDef{
	{authcore.MetricFlowInitiated, "authcore_flow_initiated_total", "Authentication flows started."},
	{authcore.MetricStepAdvanced, "authcore_step_advanced_total", "Successful flow step transitions."},
	{authcore.MetricFlowCompleted, "authcore_flow_completed_total", "Flows reaching the authenticated state."},
	{authcore.MetricDeadEnd, "authcore_flow_dead_end_total", "Transitions with no eligible next step."},
	{authcore.MetricOtpSent, "authcore_otp_sent_total", "Passcode send requests."},
	{authcore.MetricOtpVerified, "authcore_otp_verified_total", "Passcodes accepted by the verification service."},
	{authcore.MetricOtpFailure, "authcore_otp_failure_total", "Passcodes rejected or expired."},
	{authcore.MetricTokenAcquired, "authcore_token_acquired_total", "Token pairs issued or refreshed into validity."},
	{authcore.MetricTokenRefreshFailure, "authcore_token_refresh_failure_total", "Failed refresh exchanges."},
	{authcore.MetricPinSet, "authcore_pin_set_total", "PIN creations and overwrites."},
	{authcore.MetricPinFailure, "authcore_pin_failure_total", "Wrong-PIN attempts."},
	{authcore.MetricPinLockout, "authcore_pin_lockout_total", "Lockouts armed after repeated failures."},
	{authcore.MetricSessionActivated, "authcore_session_activated_total", "Session unlocks."},
	{authcore.MetricSessionLocked, "authcore_session_locked_total", "Session locks, manual and idle."},
	{authcore.MetricLogout, "authcore_logout_total", "Logouts."},
}

type observedCounter struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter bridges authcore counters into an OpenTelemetry Meter via a
// single registered callback.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers instruments for engine's counters on meter.
func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot source.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(counterDefs)),
	}

	observables := make([]metric.Observable, 0, len(counterDefs)+1)
	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.id, instrument: ins})
		observables = append(observables, ins)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"authcore_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
