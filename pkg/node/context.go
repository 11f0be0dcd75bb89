package node

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/SuperFlyTV/phaneron/pkg/channel"
	"github.com/SuperFlyTV/phaneron/pkg/colour"
	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/convert"
	"github.com/SuperFlyTV/phaneron/pkg/frame"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
)

// VideoPipe and AudioPipe are the concrete Pipe instantiations the
// scheduler works with.
type VideoPipe = Pipe[ids.VideoOutputID, *frame.VideoFrame]
type AudioPipe = Pipe[ids.AudioOutputID, *frame.AudioFrame]

// VideoConnection/AudioConnection record which upstream output a node's
// input is wired to, alongside the Pipe used to pull frames from it.
// Exported (and their fields exported) so the scheduler, which drives
// gathering inputs from a Snapshot, can read them directly.
type VideoConnection struct {
	OutputID ids.VideoOutputID
	Pipe     *VideoPipe
}

type AudioConnection struct {
	OutputID ids.AudioOutputID
	Pipe     *AudioPipe
}

// RunContext is the scheduler-side view of a single node: its declared
// ports, its current connections, and the pending-state mailbox a control
// plane writes into. One RunContext is created per node by
// CreateNodeContext and handed to the scheduler's per-node goroutine.
// Grounded on node_context.rs's NodeRunContext/NodeRunContextInner. Port
// and connection maps use xsync.MapOf, the same concurrent-map type the
// teacher's scheduler package uses for its slot/heartbeat/allocation
// tables, since a node's outputs can be read by HandleEvent from the
// node's own goroutine while Snapshot is read concurrently by the
// scheduler driving this node's tick.
type RunContext struct {
	nodeID ids.NodeID

	idsMu         sync.Mutex
	audioInputIDs []ids.AudioInputID
	videoInputIDs []ids.VideoInputID

	audioOutputs   *xsync.MapOf[ids.AudioOutputID, *channel.Channel[*frame.AudioFrame]]
	videoOutputs   *xsync.MapOf[ids.VideoOutputID, *channel.Channel[*frame.VideoFrame]]
	connectedAudio *xsync.MapOf[ids.AudioInputID, AudioConnection]
	connectedVideo *xsync.MapOf[ids.VideoInputID, VideoConnection]

	stateMu      sync.Mutex
	pendingState *string

	stateEvents chan<- StateEvent

	// wake is signalled (non-blocking, buffered 1) whenever something that
	// could unblock a gated scheduler tick happens: a new connection, or a
	// new subscriber to one of this node's outputs. The scheduler selects
	// on it instead of busy-looping while gated (see pkg/scheduler's Open
	// Question resolution).
	wake chan struct{}
}

// NewRunContext constructs an empty RunContext for nodeID, emitting
// structural events to stateEvents as the node's ports are declared.
func NewRunContext(nodeID ids.NodeID, stateEvents chan<- StateEvent) *RunContext {
	return &RunContext{
		nodeID:         nodeID,
		audioOutputs:   xsync.NewMapOf[ids.AudioOutputID, *channel.Channel[*frame.AudioFrame]](),
		videoOutputs:   xsync.NewMapOf[ids.VideoOutputID, *channel.Channel[*frame.VideoFrame]](),
		connectedAudio: xsync.NewMapOf[ids.AudioInputID, AudioConnection](),
		connectedVideo: xsync.NewMapOf[ids.VideoInputID, VideoConnection](),
		stateEvents:    stateEvents,
		wake:           make(chan struct{}, 1),
	}
}

// Wake returns the channel the scheduler selects on while a tick is gated
// on connections or subscribers that have not yet arrived.
func (rc *RunContext) Wake() <-chan struct{} {
	return rc.wake
}

func (rc *RunContext) signalWake() {
	select {
	case rc.wake <- struct{}{}:
	default:
	}
}

// Snapshot is the immutable view of a RunContext's port/connection state
// the scheduler reads once per tick before gating on connectivity.
// Mirrors node_context.rs's RunProcessFrameContext.
type Snapshot struct {
	AudioInputIDs  []ids.AudioInputID
	VideoInputIDs  []ids.VideoInputID
	AudioOutputs   map[ids.AudioOutputID]*channel.Channel[*frame.AudioFrame]
	VideoOutputs   map[ids.VideoOutputID]*channel.Channel[*frame.VideoFrame]
	ConnectedAudio map[ids.AudioInputID]AudioConnection
	ConnectedVideo map[ids.VideoInputID]VideoConnection
}

// Snapshot takes a copy of the run context's current ports and
// connections for use in one scheduler tick. The port/connection maps are
// each internally consistent (xsync.MapOf's Range iterates a single
// point-in-time view); the copy as a whole is not a single atomic
// snapshot across maps, which mirrors the granularity the scheduler
// actually needs: each map answers one independent question (which
// outputs exist, which inputs are wired) rather than a joint one.
func (rc *RunContext) Snapshot() Snapshot {
	rc.idsMu.Lock()
	audioInputIDs := append([]ids.AudioInputID(nil), rc.audioInputIDs...)
	videoInputIDs := append([]ids.VideoInputID(nil), rc.videoInputIDs...)
	rc.idsMu.Unlock()

	audioOutputs := make(map[ids.AudioOutputID]*channel.Channel[*frame.AudioFrame], rc.audioOutputs.Size())
	rc.audioOutputs.Range(func(k ids.AudioOutputID, v *channel.Channel[*frame.AudioFrame]) bool {
		audioOutputs[k] = v
		return true
	})
	videoOutputs := make(map[ids.VideoOutputID]*channel.Channel[*frame.VideoFrame], rc.videoOutputs.Size())
	rc.videoOutputs.Range(func(k ids.VideoOutputID, v *channel.Channel[*frame.VideoFrame]) bool {
		videoOutputs[k] = v
		return true
	})
	connectedAudio := make(map[ids.AudioInputID]AudioConnection, rc.connectedAudio.Size())
	rc.connectedAudio.Range(func(k ids.AudioInputID, v AudioConnection) bool {
		connectedAudio[k] = v
		return true
	})
	connectedVideo := make(map[ids.VideoInputID]VideoConnection, rc.connectedVideo.Size())
	rc.connectedVideo.Range(func(k ids.VideoInputID, v VideoConnection) bool {
		connectedVideo[k] = v
		return true
	})

	return Snapshot{
		AudioInputIDs:  audioInputIDs,
		VideoInputIDs:  videoInputIDs,
		AudioOutputs:   audioOutputs,
		VideoOutputs:   videoOutputs,
		ConnectedAudio: connectedAudio,
		ConnectedVideo: connectedVideo,
	}
}

// SetPendingState stages a new state string for the scheduler to apply
// before the next processing tick.
func (rc *RunContext) SetPendingState(state string) {
	rc.stateMu.Lock()
	rc.pendingState = &state
	rc.stateMu.Unlock()
}

// TakePendingState returns and clears any staged state.
func (rc *RunContext) TakePendingState() (string, bool) {
	rc.stateMu.Lock()
	defer rc.stateMu.Unlock()
	if rc.pendingState == nil {
		return "", false
	}
	state := *rc.pendingState
	rc.pendingState = nil
	return state, true
}

func (rc *RunContext) addAudioInput(id ids.AudioInputID) {
	rc.idsMu.Lock()
	rc.audioInputIDs = append(rc.audioInputIDs, id)
	rc.idsMu.Unlock()
	rc.emit(StateEvent{Kind: AudioInputAdded, NodeID: rc.nodeID, AudioInputID: id})
}

func (rc *RunContext) addVideoInput(id ids.VideoInputID) {
	rc.idsMu.Lock()
	rc.videoInputIDs = append(rc.videoInputIDs, id)
	rc.idsMu.Unlock()
	rc.emit(StateEvent{Kind: VideoInputAdded, NodeID: rc.nodeID, VideoInputID: id})
}

func (rc *RunContext) addAudioOutput(id ids.AudioOutputID, ch *channel.Channel[*frame.AudioFrame]) {
	rc.audioOutputs.Store(id, ch)
	rc.emit(StateEvent{Kind: AudioOutputAdded, NodeID: rc.nodeID, AudioOutputID: id})
}

func (rc *RunContext) addVideoOutput(id ids.VideoOutputID, ch *channel.Channel[*frame.VideoFrame]) {
	rc.videoOutputs.Store(id, ch)
	rc.emit(StateEvent{Kind: VideoOutputAdded, NodeID: rc.nodeID, VideoOutputID: id})
}

func (rc *RunContext) emit(ev StateEvent) {
	if rc.stateEvents == nil {
		return
	}
	// A full state-event channel means the registry is falling behind;
	// block rather than silently drop a structural event.
	rc.stateEvents <- ev
}

// EmitStateChanged reports that the node's own apply-state step accepted
// a new state. Called by the scheduler, not by HandleEvent.
func (rc *RunContext) EmitStateChanged(state string) {
	rc.emit(StateEvent{Kind: StateChanged, NodeID: rc.nodeID, State: state})
}

// ConnectVideo wires toInput to the given upstream output's pipe. Returns
// ErrVideoInputDoesNotExist if toInput was never declared, or
// ErrVideoInputAlreadyConnected if it already has a different upstream.
func (rc *RunContext) ConnectVideo(toInput ids.VideoInputID, outputID ids.VideoOutputID, pipe *VideoPipe) error {
	rc.idsMu.Lock()
	found := false
	for _, id := range rc.videoInputIDs {
		if id == toInput {
			found = true
			break
		}
	}
	rc.idsMu.Unlock()
	if !found {
		return fmt.Errorf("%w: %s", ErrVideoInputDoesNotExist, toInput)
	}

	if existing, ok := rc.connectedVideo.Load(toInput); ok {
		return fmt.Errorf("%w: %s already connected to %s", ErrVideoInputAlreadyConnected, toInput, existing.OutputID)
	}
	rc.connectedVideo.Store(toInput, VideoConnection{OutputID: outputID, Pipe: pipe})
	rc.signalWake()
	return nil
}

// ConnectAudio is ConnectVideo's audio counterpart.
func (rc *RunContext) ConnectAudio(toInput ids.AudioInputID, outputID ids.AudioOutputID, pipe *AudioPipe) error {
	rc.idsMu.Lock()
	found := false
	for _, id := range rc.audioInputIDs {
		if id == toInput {
			found = true
			break
		}
	}
	rc.idsMu.Unlock()
	if !found {
		return fmt.Errorf("%w: %s", ErrAudioInputDoesNotExist, toInput)
	}

	if existing, ok := rc.connectedAudio.Load(toInput); ok {
		return fmt.Errorf("%w: %s already connected to %s", ErrAudioInputAlreadyConnected, toInput, existing.OutputID)
	}
	rc.connectedAudio.Store(toInput, AudioConnection{OutputID: outputID, Pipe: pipe})
	rc.signalWake()
	return nil
}

// DisconnectVideo removes a video input's connection, e.g. after its
// upstream pipe reports end of stream. The input is left unconnected, not
// declared-but-gone, so a future ConnectVideo call can rewire it.
func (rc *RunContext) DisconnectVideo(input ids.VideoInputID) {
	rc.connectedVideo.Delete(input)
}

// DisconnectAudio is DisconnectVideo's audio counterpart.
func (rc *RunContext) DisconnectAudio(input ids.AudioInputID) {
	rc.connectedAudio.Delete(input)
}

// CloseOutputs closes every output channel this node has declared, so each
// subscriber's Pipe.NextFrame observes end-of-stream rather than blocking
// forever. Called once by the registry when a node is removed (see
// pkg/registry's RemoveNode), per spec.md §5's cancellation semantics.
func (rc *RunContext) CloseOutputs() {
	rc.videoOutputs.Range(func(_ ids.VideoOutputID, ch *channel.Channel[*frame.VideoFrame]) bool {
		ch.Close()
		return true
	})
	rc.audioOutputs.Range(func(_ ids.AudioOutputID, ch *channel.Channel[*frame.AudioFrame]) bool {
		ch.Close()
		return true
	})
}

// GetVideoPipe builds a fresh VideoPipe subscribed to outputID's channel.
// Subscribing changes this node's own no-receivers status, so it wakes
// any tick of this node gated on having at least one subscriber.
func (rc *RunContext) GetVideoPipe(outputID ids.VideoOutputID) (*VideoPipe, error) {
	ch, ok := rc.videoOutputs.Load(outputID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVideoOutputDoesNotExist, outputID)
	}
	pipe := NewPipe(outputID, ch.Subscribe())
	rc.signalWake()
	return pipe, nil
}

// GetAudioPipe builds a fresh AudioPipe subscribed to outputID's channel.
func (rc *RunContext) GetAudioPipe(outputID ids.AudioOutputID) (*AudioPipe, error) {
	ch, ok := rc.audioOutputs.Load(outputID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAudioOutputDoesNotExist, outputID)
	}
	pipe := NewPipe(outputID, ch.Subscribe())
	rc.signalWake()
	return pipe, nil
}

// HandleEvent applies one plugin-declared Event to the run context,
// called by the scheduler as it drains a node's event queue between
// ticks.
func (rc *RunContext) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventAudioInputAdded:
		rc.addAudioInput(ev.AudioInputID)
	case EventVideoInputAdded:
		rc.addVideoInput(ev.VideoInputID)
	case EventAudioOutputAdded:
		rc.addAudioOutput(ev.AudioOutputID, ev.AudioChannel)
	case EventVideoOutputAdded:
		rc.addVideoOutput(ev.VideoOutputID, ev.VideoChannel)
	}
}

// ContextImpl is the plugin-facing implementation of plugin.NodeContext.
// It reports every declared port to its owning RunContext via an Event
// channel rather than mutating shared state directly, so a node's
// constructor (which may run before the scheduler's goroutine starts
// reading) can never race with the scheduler's first tick.
// Grounded on node_context.rs's NodeContextImpl.
type ContextImpl struct {
	nodeID  ids.NodeID
	compute *compute.Context
	events  chan<- Event
	sema    *channel.SemaphoreProvider
}

// NewContextImpl constructs the plugin-facing context for nodeID.
func NewContextImpl(nodeID ids.NodeID, computeCtx *compute.Context, events chan<- Event, sema *channel.SemaphoreProvider) *ContextImpl {
	return &ContextImpl{nodeID: nodeID, compute: computeCtx, events: events, sema: sema}
}

var _ plugin.NodeContext = (*ContextImpl)(nil)

func (c *ContextImpl) AddAudioInput() ids.AudioInputID {
	id := ids.NewAudioInputID()
	c.events <- Event{Kind: EventAudioInputAdded, AudioInputID: id}
	return id
}

func (c *ContextImpl) AddVideoInput() ids.VideoInputID {
	id := ids.NewVideoInputID()
	c.events <- Event{Kind: EventVideoInputAdded, VideoInputID: id}
	return id
}

func (c *ContextImpl) AddAudioOutput() plugin.AudioOutput {
	id := ids.NewAudioOutputID()
	ch := channel.New[*frame.AudioFrame]()
	c.events <- Event{Kind: EventAudioOutputAdded, AudioOutputID: id, AudioChannel: ch}
	return &audioOutput{sema: c.sema, ch: ch}
}

func (c *ContextImpl) AddVideoOutput() plugin.VideoOutput {
	id := ids.NewVideoOutputID()
	ch := channel.New[*frame.VideoFrame]()
	c.events <- Event{Kind: EventVideoOutputAdded, VideoOutputID: id, VideoChannel: ch}
	return &videoOutput{sema: c.sema, ch: ch}
}

func (c *ContextImpl) CreateToRGBA(format plugin.VideoFormat, spec colour.Spec, width, height int) (plugin.ToRGBA, error) {
	return convert.NewToRGBA(c.compute, string(format), spec, width, height)
}

func (c *ContextImpl) CreateFromRGBA(format plugin.VideoFormat, spec colour.Spec, width, height int, interlace plugin.InterlaceMode) (plugin.FromRGBA, error) {
	return convert.NewFromRGBA(c.compute, string(format), spec, width, height, int(interlace))
}

func (c *ContextImpl) CreateToAudioF32(format plugin.AudioFormat, layout plugin.AudioChannelLayout) (plugin.ToAudioF32, error) {
	return convert.NewToAudioF32(string(format), int(layout))
}

func (c *ContextImpl) CreateFromAudioF32(format plugin.AudioFormat, layout plugin.AudioChannelLayout) (plugin.FromAudioF32, error) {
	return convert.NewFromAudioF32(string(format), int(layout))
}

// videoOutput/audioOutput are the plugin-facing Send handles returned by
// AddVideoOutput/AddAudioOutput. videoOutput.Send retains the frame once
// per subscriber beyond the first before Channel.Send (which never
// retains) fans it out, and releases it when there is no subscriber.
// audioOutput.Send hands the frame to Channel.Send as is.
type videoOutput struct {
	sema *channel.SemaphoreProvider
	ch   *channel.Channel[*frame.VideoFrame]
}

func (o *videoOutput) Send(f *frame.VideoFrame, _ plugin.FrameContext) {
	n := o.ch.Len()
	if n == 0 {
		f.Release()
		return
	}
	for i := 1; i < n; i++ {
		f.Retain()
	}
	o.ch.Send(o.sema, f)
}

type audioOutput struct {
	sema *channel.SemaphoreProvider
	ch   *channel.Channel[*frame.AudioFrame]
}

func (o *audioOutput) Send(f *frame.AudioFrame, _ plugin.FrameContext) {
	o.ch.Send(o.sema, f)
}
