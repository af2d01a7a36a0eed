// Package timeline renders a simulation run as a PNG: one lane per composite
// showing when it was whole or split, the commands issued, and the scripted
// cues.
package timeline

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"splitguard/internal/host"
	"splitguard/internal/sim"
)

// Options controls the canvas.
type Options struct {
	Width      int
	LaneHeight int
	Title      string
}

// DefaultOptions returns a canvas that fits a terminal-sized preview.
func DefaultOptions() Options {
	return Options{Width: 1200, LaneHeight: 60}
}

// Layout constants.
const (
	marginLeft   = 170.0
	marginRight  = 20.0
	headerHeight = 40.0
	laneGap      = 16.0
	footerHeight = 60.0
)

// Palette.
var (
	colBackground  = color.RGBA{12, 12, 28, 255}
	colGrid        = color.RGBA{30, 30, 45, 255}
	colText        = color.RGBA{220, 220, 230, 255}
	ColAssembled   = color.RGBA{46, 204, 113, 255}
	ColSplit       = color.RGBA{231, 76, 60, 255}
	ColUnlocking   = color.RGBA{241, 196, 15, 255}
	colDisassemble = color.RGBA{255, 62, 62, 255}
	colUnlock      = color.RGBA{52, 152, 219, 255}
	colRefused     = color.RGBA{149, 165, 166, 255}
	colMark        = color.RGBA{155, 89, 182, 255}
)

// Render draws res. It returns an error only when there is nothing to draw.
func Render(res sim.Result, opts Options) (image.Image, error) {
	if len(res.Samples) == 0 {
		return nil, fmt.Errorf("timeline: no samples")
	}
	if opts.Width <= 0 || opts.LaneHeight <= 0 {
		opts = DefaultOptions()
	}

	recipes := res.World.Recipes
	lanes := float64(len(recipes))
	height := headerHeight + lanes*(float64(opts.LaneHeight)+laneGap) + footerHeight

	dc := gg.NewContext(opts.Width, int(math.Ceil(height)))
	p := plot{
		dc:    dc,
		t0:    res.Samples[0].T,
		t1:    res.Samples[len(res.Samples)-1].T,
		width: float64(opts.Width),
	}
	if p.t1 <= p.t0 {
		p.t1 = p.t0 + 1
	}

	p.background(height)
	if opts.Title != "" {
		dc.SetColor(colText)
		dc.DrawString(opts.Title, 10, 20)
	}
	p.axis(height)

	for i, r := range recipes {
		top := headerHeight + float64(i)*(float64(opts.LaneHeight)+laneGap)
		p.lane(res, r, top, float64(opts.LaneHeight))
	}
	p.marks(res.Marks, height)

	return dc.Image(), nil
}

// SavePNG renders res and writes it to path.
func SavePNG(path string, res sim.Result, opts Options) error {
	img, err := Render(res, opts)
	if err != nil {
		return err
	}
	return gg.SavePNG(path, img)
}

type plot struct {
	dc     *gg.Context
	t0, t1 float64
	width  float64
}

// X maps a game time to a canvas column.
func (p plot) X(t float64) float64 {
	span := p.width - marginLeft - marginRight
	return marginLeft + (t-p.t0)/(p.t1-p.t0)*span
}

func (p plot) background(height float64) {
	p.dc.SetColor(colBackground)
	p.dc.DrawRectangle(0, 0, p.width, height)
	p.dc.Fill()
}

// axis draws one grid line per second with relative labels.
func (p plot) axis(height float64) {
	p.dc.SetLineWidth(1)
	for s := math.Ceil(p.t0); s <= p.t1; s++ {
		x := p.X(s)
		p.dc.SetColor(colGrid)
		p.dc.DrawLine(x, headerHeight-6, x, height-footerHeight+6)
		p.dc.Stroke()
		p.dc.SetColor(colText)
		p.dc.DrawStringAnchored(fmt.Sprintf("%.0fs", s-p.t0), x, height-footerHeight+18, 0.5, 0.5)
	}
}

func (p plot) lane(res sim.Result, r sim.Recipe, top, h float64) {
	p.dc.SetColor(colText)
	p.dc.DrawStringAnchored(r.Composite, 10, top+h/2, 0, 0.5)

	// State bar in the upper two thirds.
	barH := h * 2 / 3
	for i, s := range res.Samples {
		next := p.t1
		if i+1 < len(res.Samples) {
			next = res.Samples[i+1].T
		}
		switch {
		case s.Assembled[r.Composite]:
			p.dc.SetColor(ColAssembled)
		case s.Locked[r.Composite] > 0:
			p.dc.SetColor(ColSplit)
		default:
			p.dc.SetColor(ColUnlocking)
		}
		x0, x1 := p.X(s.T), p.X(next)
		p.dc.DrawRectangle(x0, top, math.Max(x1-x0, 1), barH)
		p.dc.Fill()
	}

	// Command ticks in the lower third.
	tickTop := top + barH + 2
	for _, is := range res.World.Issued {
		if !belongs(r, is.Item) || is.At < p.t0 || is.At > p.t1 {
			continue
		}
		switch {
		case is.Refused:
			p.dc.SetColor(colRefused)
		case is.Kind == host.CommandDisassemble:
			p.dc.SetColor(colDisassemble)
		default:
			p.dc.SetColor(colUnlock)
		}
		x := p.X(is.At)
		p.dc.DrawRectangle(x-1, tickTop, 3, h-barH-2)
		p.dc.Fill()
	}
}

func belongs(r sim.Recipe, item string) bool {
	if item == r.Composite {
		return true
	}
	for _, c := range r.Components {
		if c == item {
			return true
		}
	}
	return false
}

func (p plot) marks(marks []sim.Mark, height float64) {
	p.dc.SetLineWidth(1)
	p.dc.SetDash(4, 3)
	defer p.dc.SetDash()

	bottom := height - footerHeight
	for i, m := range marks {
		x := p.X(m.T)
		p.dc.SetColor(colMark)
		p.dc.DrawLine(x, headerHeight-6, x, bottom)
		p.dc.Stroke()
		// Stagger labels so neighbouring cues stay readable.
		y := bottom + 34 + float64(i%2)*14
		p.dc.DrawStringAnchored(m.Label, x, y, 0.5, 0.5)
	}
}
