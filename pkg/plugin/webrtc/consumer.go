// Package webrtc implements a PluginHost providing a single consumer node
// type that takes frames out of the common working space via
// plugin.FromRGBA/FromAudioF32 and writes them onto pion/webrtc tracks,
// grounded on
// original_source/phaneron-plugin-webrtc/src/webrtc_consumer.rs's
// WebRTCConsumer (video_input/audio_input, from_rgba/from_audio_f32,
// process_frame's submit-then-copy_frame ordering) and the Go-side
// PeerConnection/track wiring pattern in petervdpas-goop2's
// internal/call/session.go and the TrackLocalStaticSample usage in
// other_examples' richinsley-bunghole server.go.
//
// The original's embedded axum HTTP signaling server (/createPeerConnection,
// /addMedia) is out of scope: spec.md's Non-goals exclude any HTTP/WebSocket
// control API. A caller that wants to exchange SDP with a browser takes the
// *webrtc.PeerConnection off Consumer and signals it through whatever
// transport it already has.
package webrtc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/SuperFlyTV/phaneron/pkg/colour"
	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
)

const KindConsumer = "webrtc_consumer"

const (
	consumerVideoWidth  = 1920
	consumerVideoHeight = 1080
	frameInterval       = 40 * time.Millisecond // matches the original's 25fps cadence
	audioClockRate      = 48000
	rtpPayloadType      = 97 // dynamic payload type for the raw PCM payloader below
)

// Host is the webrtc PluginHost. compute is unused by CreateNode (every
// converter a Consumer needs comes through its plugin.NodeContext already);
// it is kept so NewHost has the same (computeCtx, ...) shape as
// demo.NewHost/gst.NewHost for uniform construction in cmd/phaneron.
type Host struct {
	compute    *compute.Context
	iceServers []webrtc.ICEServer
}

// NewHost builds the webrtc host. stunServers names the ICE servers every
// consumer's PeerConnection is configured with.
func NewHost(computeCtx *compute.Context, stunServers []string) *Host {
	servers := make([]webrtc.ICEServer, len(stunServers))
	for i, url := range stunServers {
		servers[i] = webrtc.ICEServer{URLs: []string{url}}
	}
	return &Host{compute: computeCtx, iceServers: servers}
}

func (h *Host) Name() string { return "webrtc" }

func (h *Host) NodeKinds() []string { return []string{KindConsumer} }

func (h *Host) CreateNode(kind string, ctx plugin.NodeContext, config string) (plugin.Node, error) {
	if kind != KindConsumer {
		return nil, fmt.Errorf("webrtc: unknown node type %q", kind)
	}
	return newConsumer(ctx, h.iceServers, config)
}

// consumerConfiguration is the node's opaque initial configuration; an
// absent/empty string is equivalent to a zero value.
type consumerConfiguration struct {
	// StreamID groups this consumer's tracks under one MediaStream id, the
	// way TrackLocalStaticSample.New's streamID parameter expects.
	StreamID string `json:"streamId"`
}

// Consumer is a plugin.Node with one video and one audio input, forwarding
// both onto a PeerConnection's local tracks every tick.
type Consumer struct {
	videoInput ids.VideoInputID
	audioInput ids.AudioInputID

	fromRGBA     plugin.FromRGBA
	fromAudioF32 plugin.FromAudioF32

	pc         *webrtc.PeerConnection
	videoTrack *webrtc.TrackLocalStaticSample
	audioTrack *webrtc.TrackLocalStaticRTP
	packetizer rtp.Packetizer
}

// PeerConnection exposes the underlying *webrtc.PeerConnection so a caller
// can exchange SDP with a browser through whatever signaling channel it
// already runs; this package does not implement one (see package comment).
func (c *Consumer) PeerConnection() *webrtc.PeerConnection { return c.pc }

func newConsumer(ctx plugin.NodeContext, iceServers []webrtc.ICEServer, config string) (*Consumer, error) {
	var cfg consumerConfiguration
	if config != "" {
		if err := json.Unmarshal([]byte(config), &cfg); err != nil {
			return nil, fmt.Errorf("webrtc: invalid consumer configuration: %w", err)
		}
	}
	if cfg.StreamID == "" {
		cfg.StreamID = "phaneron"
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("webrtc: failed to register default codecs: %w", err)
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("webrtc: failed to create peer connection: %w", err)
	}

	// TODO: no VP8/H.264 encoder library was retrieved in the example
	// corpus, so videoTrack's samples carry the raw yuv420p FromRGBA
	// bytes rather than a real compressed bitstream; swap the mime type
	// and payload once a concrete Go encoder is wired in.
	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", cfg.StreamID,
	)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("webrtc: failed to create video track: %w", err)
	}
	if _, err := pc.AddTrack(videoTrack); err != nil {
		pc.Close()
		return nil, fmt.Errorf("webrtc: failed to add video track: %w", err)
	}

	audioTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: "audio/x-phaneron-pcm-f32", ClockRate: audioClockRate, Channels: 1},
		"audio", cfg.StreamID,
	)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("webrtc: failed to create audio track: %w", err)
	}
	if _, err := pc.AddTrack(audioTrack); err != nil {
		pc.Close()
		return nil, fmt.Errorf("webrtc: failed to add audio track: %w", err)
	}

	fromRGBA, err := ctx.CreateFromRGBA(
		plugin.VideoFormat("yuv420p"),
		colour.SRGB,
		consumerVideoWidth, consumerVideoHeight,
		plugin.Progressive,
	)
	if err != nil {
		pc.Close()
		return nil, err
	}
	fromAudioF32, err := ctx.CreateFromAudioF32(plugin.AudioFormat("f32"), plugin.Mono)
	if err != nil {
		pc.Close()
		return nil, err
	}

	return &Consumer{
		videoInput:   ctx.AddVideoInput(),
		audioInput:   ctx.AddAudioInput(),
		fromRGBA:     fromRGBA,
		fromAudioF32: fromAudioF32,
		pc:           pc,
		videoTrack:   videoTrack,
		audioTrack:   audioTrack,
		packetizer: rtp.NewPacketizer(
			mtu, rtpPayloadType, randomSSRC(),
			rawPCMPayloader{}, rtp.NewRandomSequencer(), audioClockRate,
		),
	}, nil
}

// ApplyState accepts any state: this consumer has no runtime-configurable
// behaviour (its only configuration is the construction-time streamId), so
// there is nothing a state string could apply; it always accepts so the
// node becomes visible in the registry's StateChanged-gated snapshot, the
// same reasoning pkg/plugin/demo's turboConsumer.ApplyState documents.
func (c *Consumer) ApplyState(string) bool { return true }

func (c *Consumer) ProcessFrame(
	processCtx plugin.ProcessFrameContext,
	videoInputs map[ids.VideoInputID]plugin.VideoFrameWithID,
	audioInputs map[ids.AudioInputID]plugin.AudioFrameWithID,
	blackFrame plugin.VideoFrameWithID,
	silenceFrame plugin.AudioFrameWithID,
) {
	video, ok := videoInputs[c.videoInput]
	if !ok {
		video = blackFrame
	}
	audio, ok := audioInputs[c.audioInput]
	if !ok {
		audio = silenceFrame
	}

	fc, err := processCtx.Submit()
	if err != nil {
		video.Frame.Release()
		audio.Frame.Release()
		return
	}

	videoBytes, videoErr := c.fromRGBA.Convert(video.Frame, fc)
	video.Frame.Release()
	audioBytes, audioErr := c.fromAudioF32.Convert(audio.Frame, fc)
	audio.Frame.Release()

	if videoErr != nil {
		log.Error().Err(videoErr).Msg("webrtc: video frame conversion failed")
	} else if err := c.videoTrack.WriteSample(media.Sample{Data: videoBytes, Duration: frameInterval}); err != nil {
		log.Error().Err(err).Msg("webrtc: failed to write video sample")
	}

	if audioErr != nil {
		log.Error().Err(audioErr).Msg("webrtc: audio frame conversion failed")
		return
	}
	samples := uint32(len(audioBytes) / 4) // f32 mono: 4 bytes/sample
	for _, pkt := range c.packetizer.Packetize(audioBytes, samples) {
		if err := c.audioTrack.WriteRTP(pkt); err != nil {
			log.Error().Err(err).Msg("webrtc: failed to write audio RTP packet")
		}
	}
}

const mtu = 1200

// rawPCMPayloader implements rtp.Payloader by chunking a PCM buffer across
// RTP packets with no further framing, the way a "raw" payload type (as
// opposed to a structured codec like VP8/Opus) is packetized.
type rawPCMPayloader struct{}

func (rawPCMPayloader) Payload(mtu uint16, payload []byte) [][]byte {
	if mtu == 0 {
		return nil
	}
	out := make([][]byte, 0, len(payload)/int(mtu)+1)
	for len(payload) > 0 {
		n := int(mtu)
		if n > len(payload) {
			n = len(payload)
		}
		out = append(out, payload[:n])
		payload = payload[n:]
	}
	return out
}

func randomSSRC() uint32 {
	return uint32(time.Now().UnixNano())
}
