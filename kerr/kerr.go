// Package kerr defines the kernel's error categories (§7): sentinel
// values other packages wrap with fmt.Errorf("...: %w", kerr.X) so
// callers can classify a failure with errors.Is without parsing strings.
package kerr

import "errors"

var (
	// ErrInvariantViolation marks a fatal integrity failure: an overlap,
	// an orphan shell, or a missing particle. diagnosis() surfaces these;
	// the caller should abort the run.
	ErrInvariantViolation = errors.New("kernel: invariant violation")

	// ErrRejectedPlacement marks a soft failure: burst_and_shrink could
	// not clear a region for a proposed placement. The caller reverts
	// the attempted change and reschedules the original domain.
	ErrRejectedPlacement = errors.New("kernel: rejected placement")

	// ErrPrecisionLoss marks a travel call that exhausted its hop budget
	// without settling. Logged as a warning; the computation continues
	// from the last known good position.
	ErrPrecisionLoss = errors.New("kernel: precision lost during travel")

	// ErrUnsupportedRule marks a reaction rule with more than two
	// products, which the engine cannot fire.
	ErrUnsupportedRule = errors.New("kernel: unsupported reaction rule")

	// ErrEventKindMismatch marks a scheduler pop whose domain kind does
	// not match the event kind the simulator loop expected to dispatch.
	ErrEventKindMismatch = errors.New("kernel: event/domain kind mismatch")
)
