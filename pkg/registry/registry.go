// Package registry implements component G of the Phaneron runtime: the
// single consumer of node-lifecycle events, owner of the global graph/node
// snapshot, and the place add_node wires a freshly constructed node's
// runtime context to the scheduler (component F) and spawns its tick loop.
//
// Grounded on original_source/phaneron/src/state.rs.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/SuperFlyTV/phaneron/pkg/channel"
	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/node"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
	"github.com/SuperFlyTV/phaneron/pkg/scheduler"
)

// PortKind discriminates a port at the untyped control-plane boundary,
// where a connection request names its endpoints as plain strings rather
// than the statically typed ids.VideoOutputID/ids.AudioOutputID this
// package uses internally (see node_context.rs's CreateConnectionType).
type PortKind int

const (
	VideoPort PortKind = iota
	AudioPort
)

type graphEntry struct {
	name    string
	nodeIDs []ids.NodeID
}

type nodeEntry struct {
	nodeType      string
	name          string
	configuration string
	runCtx        *node.RunContext
	cancel        context.CancelFunc
}

// Registry is the state registry: it owns every graph/node's bookkeeping,
// the plugin hosts node types are resolved against, and the embedded NATS
// bus snapshot updates are broadcast over.
type Registry struct {
	mu      sync.Mutex
	compute *compute.Context
	hosts   map[string]plugin.PluginHost

	graphs     map[ids.GraphID]*graphEntry
	nodes      map[ids.NodeID]*nodeEntry
	nodeStates map[ids.NodeID]string

	audioInputs  map[ids.NodeID][]ids.AudioInputID
	videoInputs  map[ids.NodeID][]ids.VideoInputID
	audioOutputs map[ids.NodeID][]ids.AudioOutputID
	videoOutputs map[ids.NodeID][]ids.VideoOutputID

	videoConnections map[ids.VideoInputID]ids.VideoOutputID
	audioConnections map[ids.AudioInputID]ids.AudioOutputID

	stateEvents chan node.StateEvent
	done        chan struct{}

	bus *snapshotBus
	log zerolog.Logger
}

// New builds a Registry over computeCtx, resolving node types against the
// given plugin hosts (a later host's NodeKinds overrides an earlier one's
// on a name collision).
func New(computeCtx *compute.Context, hosts ...plugin.PluginHost) (*Registry, error) {
	bus, err := newSnapshotBus()
	if err != nil {
		return nil, err
	}

	hostsByKind := make(map[string]plugin.PluginHost)
	for _, h := range hosts {
		for _, kind := range h.NodeKinds() {
			hostsByKind[kind] = h
		}
	}

	r := &Registry{
		compute:          computeCtx,
		hosts:            hostsByKind,
		graphs:           make(map[ids.GraphID]*graphEntry),
		nodes:            make(map[ids.NodeID]*nodeEntry),
		nodeStates:       make(map[ids.NodeID]string),
		audioInputs:      make(map[ids.NodeID][]ids.AudioInputID),
		videoInputs:      make(map[ids.NodeID][]ids.VideoInputID),
		audioOutputs:     make(map[ids.NodeID][]ids.AudioOutputID),
		videoOutputs:     make(map[ids.NodeID][]ids.VideoOutputID),
		videoConnections: make(map[ids.VideoInputID]ids.VideoOutputID),
		audioConnections: make(map[ids.AudioInputID]ids.AudioOutputID),
		stateEvents:      make(chan node.StateEvent, 256),
		done:             make(chan struct{}),
		bus:              bus,
		log:              log.With().Str("component", "registry").Logger(),
	}
	go r.handleStateEvents()
	return r, nil
}

// Close stops the registry's event loop and shuts down its embedded NATS
// bus. It does not touch the Registry's nodes' scheduler tasks; callers
// that want a clean shutdown should RemoveNode each node first.
func (r *Registry) Close() {
	close(r.done)
	r.bus.close()
}

func (r *Registry) handleStateEvents() {
	for {
		select {
		case ev := <-r.stateEvents:
			r.applyStateEvent(ev)
			r.broadcast()
		case <-r.done:
			return
		}
	}
}

// applyStateEvent folds one node.StateEvent into the registry's aggregate
// view. Mirrors state.rs's handle_node_events match arms: every event kind
// modifies the snapshot, so the caller always re-broadcasts afterward.
func (r *Registry) applyStateEvent(ev node.StateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Kind {
	case node.StateChanged:
		r.nodeStates[ev.NodeID] = ev.State
	case node.AudioInputAdded:
		r.audioInputs[ev.NodeID] = append(r.audioInputs[ev.NodeID], ev.AudioInputID)
	case node.VideoInputAdded:
		r.videoInputs[ev.NodeID] = append(r.videoInputs[ev.NodeID], ev.VideoInputID)
	case node.AudioOutputAdded:
		r.audioOutputs[ev.NodeID] = append(r.audioOutputs[ev.NodeID], ev.AudioOutputID)
	case node.VideoOutputAdded:
		r.videoOutputs[ev.NodeID] = append(r.videoOutputs[ev.NodeID], ev.VideoOutputID)
	}
}

func (r *Registry) broadcast() {
	if err := r.bus.publish(r.Snapshot()); err != nil {
		r.log.Warn().Err(err).Msg("registry: failed to publish snapshot")
	}
}

// AddGraph registers an empty graph under id, or renames an existing one.
func (r *Registry) AddGraph(id ids.GraphID, name string) {
	r.mu.Lock()
	if g, ok := r.graphs[id]; ok {
		g.name = name
	} else {
		r.graphs[id] = &graphEntry{name: name}
	}
	r.mu.Unlock()
	r.broadcast()
}

// AddNode creates a node's runtime context, asks the resolved plugin host
// to construct it (on a worker goroutine, which AddNode waits for), applies
// its initial state, and spawns its
// scheduler task. Mirrors state.rs's add_node plus the inlined
// create_node_context/apply_node_state calls create_graph makes before it.
func (r *Registry) AddNode(graphID ids.GraphID, nodeID ids.NodeID, nodeType, name, state, configuration string) error {
	r.mu.Lock()
	g, ok := r.graphs[graphID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGraphMissing, graphID)
	}
	host, ok := r.hosts[nodeType]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType)
	}
	r.mu.Unlock()

	runCtx := node.NewRunContext(nodeID, r.stateEvents)
	events := make(chan node.Event, 32)
	sema := channel.NewSemaphoreProvider()
	ctxImpl := node.NewContextImpl(nodeID, r.compute, events, sema)

	impl, err := createNodeOnWorker(host, nodeType, ctxImpl, configuration)
	if err != nil {
		return fmt.Errorf("registry: failed to create node %s of type %s: %w", nodeID, nodeType, err)
	}

	// Block and handle any ports the constructor declared before the
	// scheduler task (the sole reader of events from here on) starts.
drainConstructorEvents:
	for {
		select {
		case ev := <-events:
			runCtx.HandleEvent(ev)
		default:
			break drainConstructorEvents
		}
	}

	if applyInitialState(impl, state) {
		runCtx.EmitStateChanged(state)
	}

	runnerCtx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	g.nodeIDs = append(g.nodeIDs, nodeID)
	r.nodes[nodeID] = &nodeEntry{
		nodeType:      nodeType,
		name:          name,
		configuration: configuration,
		runCtx:        runCtx,
		cancel:        cancel,
	}
	r.mu.Unlock()

	runner := scheduler.NewRunner(nodeID, runCtx, impl, r.compute, sema, events)
	go runner.Run(runnerCtx)

	return nil
}

func createNodeOnWorker(host plugin.PluginHost, nodeType string, ctx plugin.NodeContext, configuration string) (impl plugin.Node, err error) {
	p := pool.New()
	p.Go(func() {
		impl, err = host.CreateNode(nodeType, ctx, configuration)
	})
	p.Wait()
	return impl, err
}

// applyInitialState runs apply_state on a worker thread, recovering (and
// treating as rejection) a panic the way pkg/scheduler's per-tick
// applyState does.
func applyInitialState(impl plugin.Node, state string) (accepted bool) {
	defer func() {
		if rec := recover(); rec != nil {
			accepted = false
		}
	}()
	p := pool.New()
	p.Go(func() {
		accepted = impl.ApplyState(state)
	})
	p.Wait()
	return accepted
}

// SetNodeName renames an already-registered node.
func (r *Registry) SetNodeName(nodeID ids.NodeID, name string) error {
	r.mu.Lock()
	entry, ok := r.nodes[nodeID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeMissing, nodeID)
	}
	entry.name = name
	r.mu.Unlock()
	r.broadcast()
	return nil
}

// SetNodeState stages a new state string for the node's scheduler task to
// apply before its next processing tick (node_context.rs's set_state).
func (r *Registry) SetNodeState(nodeID ids.NodeID, state string) error {
	r.mu.Lock()
	entry, ok := r.nodes[nodeID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeMissing, nodeID)
	}
	entry.runCtx.SetPendingState(state)
	return nil
}

// RemoveNode cancels a node's scheduler task and closes its outbound
// channels (RunContext.CloseOutputs), per spec.md §5's cancellation
// semantics: downstream pipes observe end-of-stream and substitute
// black/silence for the disconnected input. It then drops the node from
// the registry. Connections referencing its ports are left in place; a
// downstream node's next gathered frame from one of them will see
// end-of-stream and disconnect itself (pkg/scheduler's gatherInputs).
func (r *Registry) RemoveNode(nodeID ids.NodeID) error {
	r.mu.Lock()
	entry, ok := r.nodes[nodeID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeMissing, nodeID)
	}
	delete(r.nodes, nodeID)
	delete(r.nodeStates, nodeID)
	delete(r.audioInputs, nodeID)
	delete(r.videoInputs, nodeID)
	delete(r.audioOutputs, nodeID)
	delete(r.videoOutputs, nodeID)
	r.mu.Unlock()

	entry.cancel()
	entry.runCtx.CloseOutputs()
	r.broadcast()
	return nil
}

// MakeVideoConnection wires an upstream node's video output to a
// downstream node's video input, mirroring state.rs's
// make_video_connection: it pulls a fresh Pipe from the upstream node's
// runtime context and hands it to the downstream node's ConnectVideo.
func (r *Registry) MakeVideoConnection(fromNode ids.NodeID, fromOutput ids.VideoOutputID, toNode ids.NodeID, toInput ids.VideoInputID) error {
	r.mu.Lock()
	fromEntry, ok := r.nodes[fromNode]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeMissing, fromNode)
	}
	toEntry, ok := r.nodes[toNode]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeMissing, toNode)
	}
	if _, exists := r.videoConnections[toInput]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, toInput)
	}
	r.mu.Unlock()

	pipe, err := fromEntry.runCtx.GetVideoPipe(fromOutput)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOutputMissing, fromOutput)
	}

	if err := toEntry.runCtx.ConnectVideo(toInput, fromOutput, pipe); err != nil {
		switch {
		case errors.Is(err, node.ErrVideoInputDoesNotExist):
			return fmt.Errorf("%w: %s", ErrInputMissing, toInput)
		case errors.Is(err, node.ErrVideoInputAlreadyConnected):
			return fmt.Errorf("%w: %s", ErrAlreadyConnected, toInput)
		default:
			return err
		}
	}

	r.mu.Lock()
	r.videoConnections[toInput] = fromOutput
	r.mu.Unlock()
	r.broadcast()
	return nil
}

// MakeAudioConnection is MakeVideoConnection's audio counterpart.
func (r *Registry) MakeAudioConnection(fromNode ids.NodeID, fromOutput ids.AudioOutputID, toNode ids.NodeID, toInput ids.AudioInputID) error {
	r.mu.Lock()
	fromEntry, ok := r.nodes[fromNode]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeMissing, fromNode)
	}
	toEntry, ok := r.nodes[toNode]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeMissing, toNode)
	}
	if _, exists := r.audioConnections[toInput]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, toInput)
	}
	r.mu.Unlock()

	pipe, err := fromEntry.runCtx.GetAudioPipe(fromOutput)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOutputMissing, fromOutput)
	}

	if err := toEntry.runCtx.ConnectAudio(toInput, fromOutput, pipe); err != nil {
		switch {
		case errors.Is(err, node.ErrAudioInputDoesNotExist):
			return fmt.Errorf("%w: %s", ErrInputMissing, toInput)
		case errors.Is(err, node.ErrAudioInputAlreadyConnected):
			return fmt.Errorf("%w: %s", ErrAlreadyConnected, toInput)
		default:
			return err
		}
	}

	r.mu.Lock()
	r.audioConnections[toInput] = fromOutput
	r.mu.Unlock()
	r.broadcast()
	return nil
}

// Connect is the untyped control-plane entry point: fromOutput/toInput are
// plain strings naming ports that are not yet known to be video or audio.
// It resolves kind against the ports the nodes have actually declared and
// reports ErrTypeMismatch if a video output is asked to feed an audio
// input or vice versa, before delegating to the typed connection methods.
func (r *Registry) Connect(kind PortKind, fromNode ids.NodeID, fromOutput string, toNode ids.NodeID, toInput string) error {
	r.mu.Lock()
	mismatch := false
	switch kind {
	case VideoPort:
		mismatch = containsID(r.audioOutputs[fromNode], ids.AudioOutputID(fromOutput)) ||
			containsID(r.audioInputs[toNode], ids.AudioInputID(toInput))
	case AudioPort:
		mismatch = containsID(r.videoOutputs[fromNode], ids.VideoOutputID(fromOutput)) ||
			containsID(r.videoInputs[toNode], ids.VideoInputID(toInput))
	}
	r.mu.Unlock()

	if mismatch {
		return ErrTypeMismatch
	}

	switch kind {
	case VideoPort:
		return r.MakeVideoConnection(fromNode, ids.VideoOutputID(fromOutput), toNode, ids.VideoInputID(toInput))
	case AudioPort:
		return r.MakeAudioConnection(fromNode, ids.AudioOutputID(fromOutput), toNode, ids.AudioInputID(toInput))
	default:
		return fmt.Errorf("registry: unknown port kind %d", kind)
	}
}

func containsID[T comparable](haystack []T, needle T) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// Subscribe returns a channel that immediately holds the current snapshot
// and is updated in place (never blocking the publisher) every time the
// registry's state changes, plus an unsubscribe function the caller must
// call when done. Mirrors state.rs's subscribe().
func (r *Registry) Subscribe() (<-chan Snapshot, func(), error) {
	ch, sub, err := r.bus.subscribe()
	if err != nil {
		return nil, nil, err
	}

	select {
	case ch <- r.Snapshot():
	default:
	}

	return ch, func() {
		if err := sub.Unsubscribe(); err != nil {
			r.log.Warn().Err(err).Msg("registry: failed to unsubscribe")
		}
	}, nil
}
