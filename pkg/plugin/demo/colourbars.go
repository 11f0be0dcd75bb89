package demo

import (
	"encoding/json"

	"github.com/SuperFlyTV/phaneron/pkg/colour"
	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
)

const (
	colourBarsDefaultWidth  = 640
	colourBarsDefaultHeight = 360
)

// colourBarsConfiguration sizes the test pattern; an absent or empty
// configuration falls back to the package defaults.
type colourBarsConfiguration struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// colourBarsProducer emits a static SMPTE-like seven-bar test pattern on
// every tick. There is no original_source counterpart for this node type;
// it exists purely to give the demo mixer and consumer something to run
// against (SPEC_FULL.md §12).
type colourBarsProducer struct {
	output plugin.VideoOutput
	toRGBA plugin.ToRGBA
	raw    []byte
	width  int
	height int
}

func newColourBarsProducer(computeCtx *compute.Context, ctx plugin.NodeContext, config string) (*colourBarsProducer, error) {
	width, height := colourBarsDefaultWidth, colourBarsDefaultHeight
	if config != "" {
		var c colourBarsConfiguration
		if err := json.Unmarshal([]byte(config), &c); err == nil {
			if c.Width > 0 {
				width = c.Width
			}
			if c.Height > 0 {
				height = c.Height
			}
		}
	}

	output := ctx.AddVideoOutput()
	toRGBA, err := ctx.CreateToRGBA(plugin.VideoFormat("rgba8"), colour.BT709, width, height)
	if err != nil {
		return nil, err
	}

	return &colourBarsProducer{
		output: output,
		toRGBA: toRGBA,
		raw:    renderColourBars(width, height),
		width:  width,
		height: height,
	}, nil
}

// renderColourBars draws the classic seven vertical bars (white, yellow,
// cyan, green, magenta, red, blue) as packed rgba8 bytes.
func renderColourBars(width, height int) []byte {
	bars := [][3]byte{
		{191, 191, 191}, // white (75%)
		{191, 191, 0},   // yellow
		{0, 191, 191},   // cyan
		{0, 191, 0},     // green
		{191, 0, 191},   // magenta
		{191, 0, 0},     // red
		{0, 0, 191},     // blue
	}

	raw := make([]byte, width*height*4)
	barWidth := width / len(bars)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			bar := col / barWidth
			if bar >= len(bars) {
				bar = len(bars) - 1
			}
			c := bars[bar]
			idx := (row*width + col) * 4
			raw[idx+0] = c[0]
			raw[idx+1] = c[1]
			raw[idx+2] = c[2]
			raw[idx+3] = 255
		}
	}
	return raw
}

func (p *colourBarsProducer) ApplyState(state string) bool {
	// The test pattern never changes shape once built; any state is
	// accepted so the node becomes visible once added (see pkg/registry's
	// StateChanged-gated snapshot invariant).
	return true
}

func (p *colourBarsProducer) ProcessFrame(
	processCtx plugin.ProcessFrameContext,
	_ map[ids.VideoInputID]plugin.VideoFrameWithID,
	_ map[ids.AudioInputID]plugin.AudioFrameWithID,
	_ plugin.VideoFrameWithID,
	_ plugin.AudioFrameWithID,
) {
	fc, subErr := processCtx.Submit()
	if subErr != nil {
		return
	}
	f, err := p.toRGBA.Convert(p.raw, p.width, p.height)
	if err != nil {
		return
	}
	p.output.Send(f, fc)
}
