package compute

// ImageArg binds an Image to a kernel parameter slot.
type ImageArg struct{ Image Image }

func (ImageArg) isKernelArg() {}

// FloatArg binds a scalar float32 to a kernel parameter slot.
type FloatArg struct{ Value float32 }

func (FloatArg) isKernelArg() {}

// IntArg binds a scalar int32 to a kernel parameter slot.
type IntArg struct{ Value int32 }

func (IntArg) isKernelArg() {}

// OutputImageArg requests that the device allocate (or reuse, via the pool
// passed separately at enqueue time) an output image of the given
// dimensions and bind it to this slot; the allocated image is returned
// among EnqueueKernel's output images in declaration order.
type OutputImageArg struct {
	Width  int
	Height int
}

func (OutputImageArg) isKernelArg() {}
