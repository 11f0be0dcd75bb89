// Package compute implements component A of the Phaneron runtime: a
// process-wide handle to a single compute device, its three command-queue
// lanes (load / process / unload), and the GPU image-buffer pool with
// first-fit reuse by (width, height).
//
// The real Phaneron core drives an OpenCL device (opencl3, see
// original_source/phaneron/src/compute.rs). No OpenCL binding exists among
// the retrieved Go example repos to ground a real GPU backend on, and
// spec.md §1 explicitly says the compute library itself "is assumed to
// exist and is described only by the operations the core invokes on it". We
// therefore define that boundary as the Device interface below and ship a
// software Device that executes kernels as registered Go closures, so the
// rest of the runtime (pool, scheduler, conversion pipeline) is exercised
// exactly as it would be against a real GPU.
package compute

import (
	"fmt"
)

// Buffer is an opaque handle to device-resident linear memory.
type Buffer interface {
	// Bytes returns the number of bytes the buffer was allocated with.
	Bytes() int
}

// Image is an opaque handle to a device-resident 2D RGBA-float image.
type Image interface {
	Width() int
	Height() int
}

// Event is a handle to an asynchronous device operation. Wait blocks the
// calling goroutine until the operation has completed.
type Event interface {
	Wait()
}

// Kernel is a compiled program entry point ready to be enqueued.
type Kernel interface {
	// Name reports the entry-point name the kernel was compiled with, for
	// logging.
	Name() string
}

// KernelArg binds one parameter slot of a kernel invocation. Concrete
// argument kinds live in kernel.go.
type KernelArg interface{ isKernelArg() }

// KernelFunc is the host-side implementation a Kernel runs when enqueued.
// It stands in for the compiled OpenCL program body; see the package
// comment for why the device executes these instead of real GPU bytecode.
type KernelFunc func(args []KernelArg, globalWorkSize [2]int) ([]Image, error)

// Device is the compute backend the core invokes. A real implementation
// would wrap OpenCL command queues and memory objects; softwareDevice below
// is the only implementation shipped with this module.
type Device interface {
	AllocateBuffer(bytes int) (Buffer, error)
	AllocateImage(width, height int) (Image, error)

	// LoadHostToBuffer copies host bytes into a buffer asynchronously,
	// returning an Event that completes once the copy has landed.
	LoadHostToBuffer(buf Buffer, data []byte) (Event, error)
	// ReadBufferToHost blocks on waitFor before reading buf into out.
	ReadBufferToHost(buf Buffer, out []byte, waitFor []Event) error

	CopyBufferToImage(buf Buffer, img Image) error
	CopyImageToBuffer(img Image, buf Buffer) error

	CompileKernel(source, entryPoint string, fn KernelFunc) (Kernel, error)
	EnqueueKernel(kernel Kernel, args []KernelArg, globalWorkSize [2]int, waitFor []Event) ([]Image, Event, error)

	// CreateBlackImage returns a new opaque black image (RGB 0, alpha 1)
	// of the given dimensions, bypassing the pool (used once per scheduler black-frame
	// cache refresh, see pkg/scheduler).
	CreateBlackImage(width, height int) (Image, error)
}

// ErrAllocationFailed is a ResourceExhaustion error (spec.md §7): fatal to
// the operation that requested it.
type ErrAllocationFailed struct {
	Op  string
	Err error
}

func (e *ErrAllocationFailed) Error() string {
	return fmt.Sprintf("compute: allocation failed during %s: %v", e.Op, e.Err)
}

func (e *ErrAllocationFailed) Unwrap() error { return e.Err }

// ErrKernelCompileFailed is fatal to the node that requested the kernel.
type ErrKernelCompileFailed struct {
	EntryPoint string
	Err        error
}

func (e *ErrKernelCompileFailed) Error() string {
	return fmt.Sprintf("compute: kernel %q failed to compile: %v", e.EntryPoint, e.Err)
}

func (e *ErrKernelCompileFailed) Unwrap() error { return e.Err }
