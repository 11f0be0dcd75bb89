// Package scheduler implements component F of the Phaneron runtime: one
// goroutine per node that gates on connectivity, applies staged state,
// gathers one frame per connected input, invokes the node, and runs the
// two-phase downstream/upstream acknowledgement exchange that makes the
// whole graph pull-balanced.
//
// Grounded on original_source/phaneron/src/node_context.rs's run_node.
package scheduler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/SuperFlyTV/phaneron/pkg/channel"
	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/node"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
)

// Runner drives one node's tick loop. One Runner is created per node by
// the state registry (component G) alongside its node.RunContext and
// ContextImpl, and run in its own goroutine for the node's lifetime.
type Runner struct {
	nodeID  ids.NodeID
	runCtx  *node.RunContext
	impl    plugin.Node
	compute *compute.Context
	sema    *channel.SemaphoreProvider
	events  <-chan node.Event

	log zerolog.Logger

	blackFrame              plugin.VideoFrameWithID
	blackWidth, blackHeight int
	silenceFrame            plugin.AudioFrameWithID
}

// NewRunner builds a Runner for one node. sema must be the exact
// SemaphoreProvider the node's ContextImpl mints output-delivery
// semaphores from (see node.NewContextImpl), so the barrier step below
// drains precisely the semaphores this tick's ProcessFrame call handed
// out. events is the same channel ContextImpl writes declared-port Events
// to; the Runner is the sole reader, applying them into runCtx via
// HandleEvent.
func NewRunner(nodeID ids.NodeID, runCtx *node.RunContext, impl plugin.Node, computeCtx *compute.Context, sema *channel.SemaphoreProvider, events <-chan node.Event) *Runner {
	return &Runner{
		nodeID:       nodeID,
		runCtx:       runCtx,
		impl:         impl,
		compute:      computeCtx,
		sema:         sema,
		events:       events,
		log:          log.With().Str("node_id", nodeID.String()).Logger(),
		silenceFrame: newSilenceFrame(),
	}
}

// Run drives the tick loop until ctx is cancelled (node removal, per
// spec.md §4.F's terminal Removed state: the caller is expected to close
// the node's outbound channels and let downstream pipes observe
// end-of-stream once Run returns).
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Msg("scheduler: runner stopped")
			return
		default:
		}

		if gated := r.tick(); !gated {
			continue
		}

		// Gated: no busy-wait. The original spins here
		// (while-try_recv-continue); this corrects that per spec.md §9 by
		// blocking until something that could unblock the gate happens, or
		// until the node is removed.
		select {
		case <-r.runCtx.Wake():
		case <-ctx.Done():
			r.log.Debug().Msg("scheduler: runner stopped while gated")
			return
		}
	}
}

// drainEvents applies every structural event queued since the last drain.
// Unlike the original, which only drains inside a gated branch, this
// Runner drains at the top of every tick (gated or not) so a port
// declared mid-tick is visible to that same tick's output gate.
func (r *Runner) drainEvents() {
	for {
		select {
		case ev := <-r.events:
			r.runCtx.HandleEvent(ev)
		default:
			return
		}
	}
}

// tick runs one iteration of the state machine: Idle (gate check below) →
// AwaitingSubscribers (if gated, reported via the bool return) → Ready →
// ApplyingState → GatheringInputs → Processing → CommittingDownstream →
// AcknowledgingUpstream → Ready. A node's declared inputs never gate a
// tick — a disconnected or end-of-stream input is black/silence
// substituted by gatherInputs (spec.md §8 scenarios 3 and 6) — only a
// declared output with no current subscriber gates, since there would be
// nothing to deliver its frame to. It returns true if the tick was gated
// (no node code ran) and false if a full processing cycle completed or
// was abandoned after a logged failure.
func (r *Runner) tick() (gated bool) {
	r.drainEvents()

	snap := r.runCtx.Snapshot()

	for _, ch := range snap.VideoOutputs {
		if ch.NoReceivers() {
			return true
		}
	}
	for _, ch := range snap.AudioOutputs {
		if ch.NoReceivers() {
			return true
		}
	}

	if state, ok := r.runCtx.TakePendingState(); ok {
		if r.applyState(state) {
			r.runCtx.EmitStateChanged(state)
		}
	}

	videoInputs, audioInputs, upstream, maxWidth, maxHeight := r.gatherInputs(snap)

	black, err := r.blackFrameFor(maxWidth, maxHeight)
	if err != nil {
		r.log.Error().Err(err).Msg("scheduler: failed to build black frame substitute; tick abandoned")
		return false
	}

	if !r.runProcessFrame(videoInputs, audioInputs, black, r.silenceFrame) {
		// Logged by runProcessFrame. Per spec.md §7's failure semantics: no
		// acknowledgements are issued this tick, which will stall upstream
		// rather than silently advance.
		return false
	}

	// CommittingDownstream: wait for every subscriber this tick's
	// ProcessFrame fanned out to, to have accepted its delivery.
	channel.WaitAll(r.sema.Drain())

	// AcknowledgingUpstream: only now release the producers this tick
	// pulled a frame from.
	for _, s := range upstream {
		s.Signal()
	}

	return false
}

// gatherInputs pulls one frame from each connected input's pipe, tracking
// the maximum frame dimensions seen (for the black-frame substitute) and
// the upstream delivery semaphores to acknowledge once this tick's
// downstream fan-out is committed. An input with no connection, or whose
// pipe reports end-of-stream, is recorded for black/silence substitution
// by the caller (videoFrames/audioFrames simply omit that input's entry).
//
// The end-of-stream branch performs the real disconnect the original
// leaves as todo!("Tell context to disconnect pipe"); spec.md §5 requires
// it ("downstream pipes observe end-of-stream and substitute
// black/silence for the disconnected input").
func (r *Runner) gatherInputs(snap node.Snapshot) (
	videoFrames map[ids.VideoInputID]plugin.VideoFrameWithID,
	audioFrames map[ids.AudioInputID]plugin.AudioFrameWithID,
	upstream []channel.Semaphore,
	maxWidth, maxHeight int,
) {
	videoFrames = make(map[ids.VideoInputID]plugin.VideoFrameWithID, len(snap.VideoInputIDs))
	audioFrames = make(map[ids.AudioInputID]plugin.AudioFrameWithID, len(snap.AudioInputIDs))
	maxWidth, maxHeight = defaultBlackWidth, defaultBlackHeight

	for _, id := range snap.VideoInputIDs {
		conn, ok := snap.ConnectedVideo[id]
		if !ok {
			continue
		}
		v, sema, ok := conn.Pipe.NextFrame()
		if !ok {
			r.runCtx.DisconnectVideo(id)
			continue
		}
		upstream = append(upstream, sema)
		if v.Width > maxWidth {
			maxWidth = v.Width
		}
		if v.Height > maxHeight {
			maxHeight = v.Height
		}
		videoFrames[id] = plugin.VideoFrameWithID{OutputID: conn.OutputID, Frame: v}
	}

	for _, id := range snap.AudioInputIDs {
		conn, ok := snap.ConnectedAudio[id]
		if !ok {
			continue
		}
		a, sema, ok := conn.Pipe.NextFrame()
		if !ok {
			r.runCtx.DisconnectAudio(id)
			continue
		}
		upstream = append(upstream, sema)
		audioFrames[id] = plugin.AudioFrameWithID{OutputID: conn.OutputID, Frame: a}
	}

	return videoFrames, audioFrames, upstream, maxWidth, maxHeight
}

// processFrameContext is the plugin.ProcessFrameContext handed to one
// ProcessFrame call. Submit is the two-phase commit's unforgeable
// witness: it can only ever succeed once per tick.
type processFrameContext struct {
	mu        sync.Mutex
	submitted bool
}

func (p *processFrameContext) Submit() (plugin.FrameContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.submitted {
		return nil, ErrAlreadySubmitted
	}
	p.submitted = true
	return frameContextToken{}, nil
}

// frameContextToken is plugin.FrameContext: a capability proving Submit
// was called, carrying no behavior of its own (see traits.go).
type frameContextToken struct{}

// applyState runs Node.ApplyState on a worker goroutine and reports
// whether it was accepted, recovering (and logging) a panic as a
// rejection rather than letting it take down the Runner.
func (r *Runner) applyState(state string) (accepted bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logTickPanic("apply_state", rec)
			accepted = false
		}
	}()

	p := pool.New()
	p.Go(func() {
		accepted = r.impl.ApplyState(state)
	})
	p.Wait()
	return accepted
}

// runProcessFrame invokes Node.ProcessFrame on a worker goroutine and
// blocks until it returns, recovering a panic as a skipped tick per
// spec.md §7 ("a panic/error inside process_frame is logged and the
// iteration is skipped"). It reports whether the tick completed.
func (r *Runner) runProcessFrame(
	videoInputs map[ids.VideoInputID]plugin.VideoFrameWithID,
	audioInputs map[ids.AudioInputID]plugin.AudioFrameWithID,
	black plugin.VideoFrameWithID,
	silence plugin.AudioFrameWithID,
) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logTickPanic("process_frame", rec)
			ok = false
		}
	}()

	processCtx := &processFrameContext{}

	p := pool.New()
	p.Go(func() {
		r.impl.ProcessFrame(processCtx, videoInputs, audioInputs, black, silence)
	})
	p.Wait()

	processCtx.mu.Lock()
	submitted := processCtx.submitted
	processCtx.mu.Unlock()
	if !submitted {
		r.log.Warn().Msg("scheduler: process_frame returned without calling Submit")
	}

	return true
}
