package registry

import "errors"

// Sentinel errors reported to registry callers. Grounded on spec.md §7's
// StructuralMissing/StructuralConflict taxonomy and on the teacher's
// one-errors.go-per-package convention (pkg/scheduler/errors.go,
// pkg/node/errors.go).
var (
	ErrGraphMissing     = errors.New("registry: graph does not exist")
	ErrUnknownNodeType  = errors.New("registry: no plugin host provides this node type")
	ErrNodeMissing      = errors.New("registry: node does not exist")
	ErrOutputMissing    = errors.New("registry: output does not exist")
	ErrInputMissing     = errors.New("registry: input does not exist")
	ErrAlreadyConnected = errors.New("registry: input is already connected")
	ErrTypeMismatch     = errors.New("registry: cannot connect a video output to an audio input or vice versa")
)
