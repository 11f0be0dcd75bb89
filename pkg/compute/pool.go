package compute

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// poolSlot is one image the pool owns, either checked out or free.
type poolSlot struct {
	image     Image
	width     int
	height    int
	available bool
}

// ImagePool hands out Images sized (width, height), reusing a free slot of
// matching dimensions by first-fit scan before growing monotonically.
// Grounded on the video-buffer vector in original_source/phaneron/src/compute.rs
// (PhaneronComputeContextInner::get_image / free_image): the pool never
// shrinks, and release is asynchronous so a node's Drop can run off the hot
// path.
type ImagePool struct {
	device Device

	mu    sync.Mutex
	slots []*poolSlot

	releaseCh chan int
	done      chan struct{}
}

// NewImagePool constructs a pool and starts its background release-drain
// goroutine. Callers must call Close when the pool is no longer needed.
func NewImagePool(device Device) *ImagePool {
	p := &ImagePool{
		device:    device,
		releaseCh: make(chan int, 256),
		done:      make(chan struct{}),
	}
	go p.drainReleases()
	return p
}

func (p *ImagePool) drainReleases() {
	for {
		select {
		case idx := <-p.releaseCh:
			p.mu.Lock()
			if idx >= 0 && idx < len(p.slots) {
				p.slots[idx].available = true
			}
			p.mu.Unlock()
		case <-p.done:
			return
		}
	}
}

// Close stops the release-drain goroutine. Outstanding PooledImages that
// are released afterward leak their slot (it is simply never marked
// available again); this only happens during process shutdown.
func (p *ImagePool) Close() {
	close(p.done)
}

// PooledImage is a reference-counted handle to an image owned by an
// ImagePool. Multiple owners (fan-out to several downstream nodes) share
// one PooledImage via Retain/Release; the underlying slot becomes eligible
// for reuse only once the refcount reaches zero.
type PooledImage struct {
	pool  *ImagePool
	index int

	Image  Image
	Width  int
	Height int

	refMu sync.Mutex
	refs  int
}

// Retain increments the reference count. Callers that hand a PooledImage
// to more than one consumer must Retain once per extra holder.
func (pi *PooledImage) Retain() {
	pi.refMu.Lock()
	pi.refs++
	pi.refMu.Unlock()
}

// Release decrements the reference count. At zero, the slot is returned to
// the pool asynchronously (non-blocking unless the release queue is full,
// in which case it blocks briefly rather than silently drop the slot).
func (pi *PooledImage) Release() {
	pi.refMu.Lock()
	pi.refs--
	remaining := pi.refs
	pi.refMu.Unlock()
	if remaining > 0 {
		return
	}
	if remaining < 0 {
		log.Warn().Int("slot", pi.index).Msg("compute: pooled image released more times than retained")
		return
	}
	pi.pool.releaseCh <- pi.index
}

// Acquire returns an image of the requested dimensions, reusing the first
// free slot whose dimensions match exactly, or allocating a new one and
// appending it to the slot list when no free slot matches.
func (p *ImagePool) Acquire(width, height int) (*PooledImage, error) {
	p.mu.Lock()
	for i, slot := range p.slots {
		if slot.available && slot.width == width && slot.height == height {
			slot.available = false
			p.mu.Unlock()
			return &PooledImage{pool: p, index: i, Image: slot.image, Width: width, Height: height, refs: 1}, nil
		}
	}
	p.mu.Unlock()

	img, err := p.device.AllocateImage(width, height)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	idx := len(p.slots)
	p.slots = append(p.slots, &poolSlot{image: img, width: width, height: height, available: false})
	p.mu.Unlock()

	return &PooledImage{pool: p, index: idx, Image: img, Width: width, Height: height, refs: 1}, nil
}

// Len reports the number of slots the pool has ever allocated, for tests
// asserting the pool grows monotonically and reuses rather than
// reallocating.
func (p *ImagePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
