package channel

import "sync"

// Semaphore is a one-shot acknowledgement token handed to a single
// subscriber alongside one delivered value. Signal must be called exactly
// once, when the subscriber is done with the delivered value; calling it
// more than once is a no-op beyond the first.
type Semaphore struct {
	ch   chan struct{}
	once *sync.Once
}

// Signal acknowledges this delivery. Safe to call from any goroutine.
func (s Semaphore) Signal() {
	s.once.Do(func() { close(s.ch) })
}

// SemaphoreProvider mints semaphores for a Channel's Send calls and lets
// the sender collect every outstanding acknowledgement channel it has
// handed out since the last Drain, mirroring
// original_source/phaneron/src/channel.rs's ChannelSemaphoreProvider.
type SemaphoreProvider struct {
	mu      sync.Mutex
	pending []chan struct{}
}

// NewSemaphoreProvider constructs an empty provider.
func NewSemaphoreProvider() *SemaphoreProvider {
	return &SemaphoreProvider{}
}

// GetSemaphore mints a fresh Semaphore and records its acknowledgement
// channel so a later Drain can wait on it.
func (p *SemaphoreProvider) GetSemaphore() Semaphore {
	ch := make(chan struct{})
	p.mu.Lock()
	p.pending = append(p.pending, ch)
	p.mu.Unlock()
	return Semaphore{ch: ch, once: &sync.Once{}}
}

// Drain returns every acknowledgement channel minted since the last
// Drain, clearing the provider's pending list. The caller waits on each
// returned channel (e.g. with a select/range) to know every semaphore it
// handed out this round has been signalled.
func (p *SemaphoreProvider) Drain() []<-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]<-chan struct{}, len(p.pending))
	for i, ch := range p.pending {
		out[i] = ch
	}
	p.pending = nil
	return out
}

// WaitAll blocks until every channel returned has been closed.
func WaitAll(chans []<-chan struct{}) {
	for _, ch := range chans {
		<-ch
	}
}
