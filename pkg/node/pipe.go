package node

import "github.com/SuperFlyTV/phaneron/pkg/channel"

// Pipe is the consumer-side handle to one upstream output's fan-out
// channel, tagged with the ID of that output so the scheduler can pair a
// delivered frame with where it came from (plugin.VideoFrameWithID /
// AudioFrameWithID). Grounded on the VideoPipe/AudioPipe wrappers in
// original_source/phaneron/src/compute/video_output.rs and
// audio_output.rs.
type Pipe[OutputID comparable, T any] struct {
	ID      OutputID
	deliver <-chan channel.Delivery[T]
}

// NewPipe wraps a subscription receive channel together with the ID of
// the output it was subscribed to.
func NewPipe[OutputID comparable, T any](id OutputID, deliver <-chan channel.Delivery[T]) *Pipe[OutputID, T] {
	return &Pipe[OutputID, T]{ID: id, deliver: deliver}
}

// NextFrame blocks until a delivery arrives, or returns ok=false if the
// upstream channel has been closed (the producer side is gone; the
// scheduler treats this exactly like a never-connected input and
// substitutes black/silence).
func (p *Pipe[OutputID, T]) NextFrame() (value T, semaphore channel.Semaphore, ok bool) {
	d, ok := <-p.deliver
	if !ok {
		var zero T
		return zero, channel.Semaphore{}, false
	}
	return d.Value, d.Semaphore, true
}
