package compute

import (
	"fmt"
	"math"
	"sync"
)

// hostBuffer is the softwareDevice's Buffer implementation: a plain byte
// slice standing in for device-resident linear memory.
type hostBuffer struct {
	mu   sync.RWMutex
	data []byte
}

func (b *hostBuffer) Bytes() int { return len(b.data) }

// hostImage is the softwareDevice's Image implementation: an RGBA-float
// plane, row-major, four float32 channels per pixel — the common working
// space spec.md §5 requires every format to round-trip through.
type hostImage struct {
	mu     sync.RWMutex
	width  int
	height int
	pixels []float32 // len == width*height*4
}

func (img *hostImage) Width() int  { return img.width }
func (img *hostImage) Height() int { return img.height }

// completedEvent is already-resolved: the softwareDevice executes every
// operation synchronously on the calling goroutine, so every Event it
// returns is done by the time the caller observes it. The Event type is
// kept in the Device interface regardless, because the wait-for-completion
// contract (two-phase commit, kernel dependency chains) is part of the
// scheduler's design independent of whether the backend is actually
// asynchronous.
type completedEvent struct{}

func (completedEvent) Wait() {}

type softwareKernel struct {
	name string
	fn   KernelFunc
}

func (k *softwareKernel) Name() string { return k.name }

// softwareDevice is a reference Device backed entirely by host memory and
// goroutine-synchronous execution. See the package comment in device.go
// for why this module ships a software backend rather than a real GPU one.
type softwareDevice struct{}

// NewSoftwareDevice returns a Device that executes every operation on host
// memory, synchronously. It is suitable for tests, for the demo plugin
// host, and as the default backend when no hardware-specific Device
// implementation has been wired into the process.
func NewSoftwareDevice() Device {
	return &softwareDevice{}
}

func (d *softwareDevice) AllocateBuffer(bytes int) (Buffer, error) {
	if bytes < 0 {
		return nil, &ErrAllocationFailed{Op: "AllocateBuffer", Err: fmt.Errorf("negative size %d", bytes)}
	}
	return &hostBuffer{data: make([]byte, bytes)}, nil
}

func (d *softwareDevice) AllocateImage(width, height int) (Image, error) {
	if width <= 0 || height <= 0 {
		return nil, &ErrAllocationFailed{Op: "AllocateImage", Err: fmt.Errorf("invalid dimensions %dx%d", width, height)}
	}
	return &hostImage{width: width, height: height, pixels: make([]float32, width*height*4)}, nil
}

func (d *softwareDevice) LoadHostToBuffer(buf Buffer, data []byte) (Event, error) {
	hb, ok := buf.(*hostBuffer)
	if !ok {
		return nil, fmt.Errorf("compute: buffer not produced by softwareDevice")
	}
	hb.mu.Lock()
	defer hb.mu.Unlock()
	if len(data) != len(hb.data) {
		return nil, fmt.Errorf("compute: LoadHostToBuffer size mismatch: buffer %d, data %d", len(hb.data), len(data))
	}
	copy(hb.data, data)
	return completedEvent{}, nil
}

func (d *softwareDevice) ReadBufferToHost(buf Buffer, out []byte, waitFor []Event) error {
	for _, ev := range waitFor {
		ev.Wait()
	}
	hb, ok := buf.(*hostBuffer)
	if !ok {
		return fmt.Errorf("compute: buffer not produced by softwareDevice")
	}
	hb.mu.RLock()
	defer hb.mu.RUnlock()
	if len(out) != len(hb.data) {
		return fmt.Errorf("compute: ReadBufferToHost size mismatch: buffer %d, out %d", len(hb.data), len(out))
	}
	copy(out, hb.data)
	return nil
}

func (d *softwareDevice) CopyBufferToImage(buf Buffer, img Image) error {
	hb, ok := buf.(*hostBuffer)
	if !ok {
		return fmt.Errorf("compute: buffer not produced by softwareDevice")
	}
	hi, ok := img.(*hostImage)
	if !ok {
		return fmt.Errorf("compute: image not produced by softwareDevice")
	}
	hb.mu.RLock()
	defer hb.mu.RUnlock()
	hi.mu.Lock()
	defer hi.mu.Unlock()
	want := hi.width * hi.height * 4 * 4 // float32
	if len(hb.data) != want {
		return fmt.Errorf("compute: CopyBufferToImage size mismatch: buffer %d, image wants %d", len(hb.data), want)
	}
	for i := range hi.pixels {
		hi.pixels[i] = bytesToFloat32(hb.data[i*4 : i*4+4])
	}
	return nil
}

func (d *softwareDevice) CopyImageToBuffer(img Image, buf Buffer) error {
	hi, ok := img.(*hostImage)
	if !ok {
		return fmt.Errorf("compute: image not produced by softwareDevice")
	}
	hb, ok := buf.(*hostBuffer)
	if !ok {
		return fmt.Errorf("compute: buffer not produced by softwareDevice")
	}
	hi.mu.RLock()
	defer hi.mu.RUnlock()
	hb.mu.Lock()
	defer hb.mu.Unlock()
	want := hi.width * hi.height * 4 * 4
	if len(hb.data) != want {
		return fmt.Errorf("compute: CopyImageToBuffer size mismatch: buffer %d, image has %d", len(hb.data), want)
	}
	for i, v := range hi.pixels {
		float32ToBytes(v, hb.data[i*4:i*4+4])
	}
	return nil
}

func (d *softwareDevice) CompileKernel(source, entryPoint string, fn KernelFunc) (Kernel, error) {
	if fn == nil {
		return nil, &ErrKernelCompileFailed{EntryPoint: entryPoint, Err: fmt.Errorf("no implementation supplied")}
	}
	return &softwareKernel{name: entryPoint, fn: fn}, nil
}

func (d *softwareDevice) EnqueueKernel(kernel Kernel, args []KernelArg, globalWorkSize [2]int, waitFor []Event) ([]Image, Event, error) {
	for _, ev := range waitFor {
		ev.Wait()
	}
	sk, ok := kernel.(*softwareKernel)
	if !ok {
		return nil, nil, fmt.Errorf("compute: kernel not produced by CompileKernel")
	}
	images, err := sk.fn(args, globalWorkSize)
	if err != nil {
		return nil, nil, fmt.Errorf("compute: kernel %q failed: %w", sk.name, err)
	}
	return images, completedEvent{}, nil
}

func (d *softwareDevice) CreateBlackImage(width, height int) (Image, error) {
	img, err := d.AllocateImage(width, height)
	if err != nil {
		return nil, err
	}
	hi := img.(*hostImage)
	for i := range hi.pixels {
		if (i+1)%4 == 0 {
			hi.pixels[i] = 1 // alpha opaque, RGB already zeroed
		}
	}
	return hi, nil
}

func bytesToFloat32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}

func float32ToBytes(f float32, out []byte) {
	bits := math.Float32bits(f)
	out[0] = byte(bits)
	out[1] = byte(bits >> 8)
	out[2] = byte(bits >> 16)
	out[3] = byte(bits >> 24)
}
