package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"speechline/internal/logging"
)

// MaxRounds is the number of accelerated→fallback rounds tried per file.
const MaxRounds = 3

// Role identifies which detector instance produced a result.
type Role string

const (
	RoleAccelerated Role = "accelerated"
	RoleFallback    Role = "fallback"
	// RoleNone marks an exhausted file.
	RoleNone Role = "none"
)

// Attempt records one detector invocation.
type Attempt struct {
	Round  int
	Role   Role
	Device string
	Err    error
}

// Outcome is the tagged result of dispatching one file: either a Result from
// one of the detectors, or Exhausted with an empty Result.
type Outcome struct {
	Result Result
	// Role is the instance that succeeded, RoleNone when exhausted.
	Role Role
	// Device is the compute device of the successful instance.
	Device    string
	Rounds    int
	Attempts  []Attempt
	Exhausted bool
	Errors    []error
}

// Err joins every attempt error, or returns nil when there were none.
func (o Outcome) Err() error {
	return errors.Join(o.Errors...)
}

// AttemptHook is called before each detector invocation.
type AttemptHook func(round int, role Role, device string)

// Dispatcher runs the accelerated detector first in every round and the
// fallback detector only after an accelerated failure in the same round.
type Dispatcher struct {
	accelerated Detector
	fallback    Detector
	maxRounds   int
	logger      *slog.Logger
	onAttempt   AttemptHook
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithAttemptHook installs a callback fired before every attempt.
func WithAttemptHook(hook AttemptHook) DispatcherOption {
	return func(d *Dispatcher) { d.onAttempt = hook }
}

// NewDispatcher builds a dispatcher over the two long-lived detector instances.
func NewDispatcher(accelerated, fallback Detector, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{accelerated: accelerated, fallback: fallback, maxRounds: MaxRounds}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "dispatcher")
	return d
}

// Detect runs up to MaxRounds accelerated→fallback rounds on audioPath and
// stops at the first success. Detector errors never escape; they are
// collected on the Outcome. Cancellation of ctx ends the file as exhausted.
func (d *Dispatcher) Detect(ctx context.Context, audioPath string) Outcome {
	logger := logging.WithContext(ctx, d.logger)
	outcome := Outcome{Role: RoleNone}

	for round := 1; round <= d.maxRounds; round++ {
		outcome.Rounds = round

		result, err := d.attempt(ctx, &outcome, audioPath, round, RoleAccelerated, d.accelerated)
		if err == nil {
			return succeed(outcome, result, RoleAccelerated, d.accelerated)
		}
		if ctx.Err() != nil {
			return exhaust(outcome)
		}
		logging.WarnWithContext(logger, "accelerated speech detection failed",
			"detector_attempt_failed",
			logging.Int("round", round),
			logging.Device(d.accelerated.Device()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check accelerator memory and drivers"),
			logging.String(logging.FieldImpact, "retrying on fallback device"),
		)

		result, err = d.attempt(ctx, &outcome, audioPath, round, RoleFallback, d.fallback)
		if err == nil {
			logger.Info("processed using fallback device",
				logging.Int("round", round),
				logging.Device(d.fallback.Device()),
			)
			return succeed(outcome, result, RoleFallback, d.fallback)
		}
		if ctx.Err() != nil {
			return exhaust(outcome)
		}
		impact := "retrying on accelerated device"
		if round == d.maxRounds {
			impact = "no rounds left"
		}
		logging.WarnWithContext(logger, "fallback speech detection failed",
			"detector_attempt_failed",
			logging.Int("round", round),
			logging.Device(d.fallback.Device()),
			logging.Error(err),
			logging.String(logging.FieldImpact, impact),
		)
	}

	outcome = exhaust(outcome)
	logging.WarnWithContext(logger, "speech detection exhausted",
		"detector_exhausted",
		logging.Int("rounds", outcome.Rounds),
		logging.Int("attempts", len(outcome.Attempts)),
		logging.Error(outcome.Err()),
		logging.String(logging.FieldErrorHint, "run the detector command by hand on the extracted audio"),
		logging.String(logging.FieldImpact, "file added to the timeline without speech clips"),
	)
	return outcome
}

func (d *Dispatcher) attempt(ctx context.Context, outcome *Outcome, audioPath string, round int, role Role, detector Detector) (Result, error) {
	if err := ctx.Err(); err != nil {
		outcome.Errors = append(outcome.Errors, fmt.Errorf("round %d %s: %w", round, role, err))
		return Result{}, err
	}
	if d.onAttempt != nil {
		d.onAttempt(round, role, detector.Device())
	}
	result, err := detector.Run(ctx, audioPath)
	outcome.Attempts = append(outcome.Attempts, Attempt{Round: round, Role: role, Device: detector.Device(), Err: err})
	if err != nil {
		outcome.Errors = append(outcome.Errors, fmt.Errorf("round %d %s (%s): %w", round, role, detector.Device(), err))
	}
	return result, err
}

func succeed(outcome Outcome, result Result, role Role, detector Detector) Outcome {
	outcome.Result = result
	outcome.Role = role
	outcome.Device = detector.Device()
	outcome.Exhausted = false
	return outcome
}

func exhaust(outcome Outcome) Outcome {
	outcome.Result = Result{Segments: []Segment{}}
	outcome.Role = RoleNone
	outcome.Device = ""
	outcome.Exhausted = true
	return outcome
}
