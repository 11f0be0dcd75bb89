package compute

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Context is the process-wide compute handle: one Device, one ImagePool,
// and three independently serialized command lanes — load, process, and
// unload — matching original_source/phaneron/src/compute.rs's three
// OpenCL command queues. Each lane is a separate mutex so a long-running
// kernel on the process lane never blocks a concurrent host-to-device load
// for an unrelated node.
type Context struct {
	Device Device
	Pool   *ImagePool

	loadMu    sync.Mutex
	processMu sync.Mutex
	unloadMu  sync.Mutex

	blackImagesMu sync.Mutex
	blackImages   map[[2]int]Image
}

// NewContext wires a Device and its ImagePool into a Context.
func NewContext(device Device) *Context {
	return &Context{
		Device:      device,
		Pool:        NewImagePool(device),
		blackImages: make(map[[2]int]Image),
	}
}

// Close releases background resources (the pool's release-drain
// goroutine).
func (c *Context) Close() {
	c.Pool.Close()
}

// Load runs fn under the load lane's lock: host-to-device transfers only.
func (c *Context) Load(fn func() error) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return fn()
}

// Process runs fn under the process lane's lock: kernel enqueues.
func (c *Context) Process(fn func() error) error {
	c.processMu.Lock()
	defer c.processMu.Unlock()
	return fn()
}

// Unload runs fn under the unload lane's lock: device-to-host reads and
// image/buffer frees.
func (c *Context) Unload(fn func() error) error {
	c.unloadMu.Lock()
	defer c.unloadMu.Unlock()
	return fn()
}

// BlackImage returns a cached opaque black image (RGB 0, alpha 1) of the
// given dimensions,
// suitable for substitution on a disconnected or not-yet-connected input
// (spec.md §4.F step on missing upstream). The cache is keyed by
// dimensions and built lazily; it is never released back through the pool
// because every consumer of a black frame treats it as a shared constant.
func (c *Context) BlackImage(width, height int) (Image, error) {
	key := [2]int{width, height}

	c.blackImagesMu.Lock()
	defer c.blackImagesMu.Unlock()

	if img, ok := c.blackImages[key]; ok {
		return img, nil
	}
	img, err := c.Device.CreateBlackImage(width, height)
	if err != nil {
		return nil, err
	}
	c.blackImages[key] = img
	log.Debug().Int("width", width).Int("height", height).Msg("compute: cached new black image")
	return img, nil
}
