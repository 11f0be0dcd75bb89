package node

import "errors"

// Sentinel connection errors, compared with errors.Is at call sites.
// Grounded on node_context.rs's AudioConnectionError/VideoConnectionError
// enums and on the teacher's pkg/scheduler/errors.go convention of one
// package-level errors.go with grouped sentinels.
var (
	ErrAudioInputDoesNotExist      = errors.New("node: audio input does not exist")
	ErrAudioInputAlreadyConnected  = errors.New("node: audio input is already connected")
	ErrVideoInputDoesNotExist      = errors.New("node: video input does not exist")
	ErrVideoInputAlreadyConnected  = errors.New("node: video input is already connected")
	ErrAudioOutputDoesNotExist     = errors.New("node: audio output does not exist")
	ErrVideoOutputDoesNotExist     = errors.New("node: video output does not exist")
)
