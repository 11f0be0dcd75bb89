package scheduler

import "errors"

// Sentinel errors a Runner's tick can hit. Grounded on the teacher's
// api/pkg/scheduler/errors.go convention of one errors.go per scheduler
// package with a grouped sentinel block.
var (
	// ErrAlreadySubmitted is returned by a processFrameContext's Submit
	// when a node calls it more than once in the same tick.
	ErrAlreadySubmitted = errors.New("scheduler: process frame context already submitted")

	// ErrNotDevicePooled is returned when a node hands a video frame whose
	// underlying image did not come from the compute pool to a step that
	// requires one (copy-back to host, for instance).
	ErrNotDevicePooled = errors.New("scheduler: video frame is not backed by a pooled device image")
)

// logTickPanic records a recovered panic from a node's ApplyState or
// ProcessFrame call. Per spec.md's failure semantics this is never fatal to
// the Runner: the tick is skipped, no acknowledgements are issued, and the
// loop continues from the top on its next iteration. Mirrors the teacher's
// ErrorHandlingStrategy in shape (a single place that turns a raw error
// into a logged, non-fatal outcome) without the retry-queue semantics that
// function has, since there is no pending-work queue here to requeue onto.
func (r *Runner) logTickPanic(step string, recovered any) {
	r.log.Error().
		Str("step", step).
		Interface("panic", recovered).
		Msg("scheduler: node code panicked; tick skipped, no acknowledgements issued")
}
