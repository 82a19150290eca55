// Package viz renders planning states and trained maps to image files.
package viz

import (
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/planning"
	"github.com/mmurooka/differentiable-rmap/sampling"
)

const (
	defaultImageWidth  = 800
	defaultImageHeight = 600
	defaultScale       = 200
	defaultFootLength  = 0.12
	defaultFootWidth   = 0.06
)

var chainColors = []color.RGBA{
	{31, 119, 180, 255},
	{255, 127, 14, 255},
	{44, 160, 44, 255},
	{148, 103, 189, 255},
	{140, 86, 75, 255},
}

var targetColor = color.RGBA{214, 39, 40, 255}

// DrawConfig controls the rendering of chain images. The world origin maps to
// the image center with y up.
type DrawConfig struct {
	// Width and Height are the image size in pixels.
	Width  int
	Height int
	// Scale is the number of pixels per world unit.
	Scale float64
	// FootLength and FootWidth are the world size of the rectangle drawn for
	// planar footstep samples.
	FootLength float64
	FootWidth  float64
}

func (cfg DrawConfig) withDefaults() DrawConfig {
	if cfg.Width <= 0 {
		cfg.Width = defaultImageWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultImageHeight
	}
	if cfg.Scale <= 0 {
		cfg.Scale = defaultScale
	}
	if cfg.FootLength <= 0 {
		cfg.FootLength = defaultFootLength
	}
	if cfg.FootWidth <= 0 {
		cfg.FootWidth = defaultFootWidth
	}
	return cfg
}

func (cfg DrawConfig) toImage(x, y float64) (float64, float64) {
	return float64(cfg.Width)/2 + x*cfg.Scale, float64(cfg.Height)/2 - y*cfg.Scale
}

// DrawChain2D renders the XY projection of every chain in the state as a
// polyline with vertex markers and writes a PNG. Planar samples carrying a
// heading are additionally drawn as oriented foot rectangles, and the target
// as a cross.
func DrawChain2D(st planning.State, cfg DrawConfig, path string) error {
	cfg = cfg.withDefaults()
	dc := gg.NewContext(cfg.Width, cfg.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for ci, chain := range st.Chains {
		if len(chain.Samples) == 0 {
			continue
		}
		dc.SetColor(chainColors[ci%len(chainColors)])
		dc.SetLineWidth(2)
		for i := 1; i < len(chain.Samples); i++ {
			x0, y0 := cfg.toImage(planarXY(chain.Samples[i-1]))
			x1, y1 := cfg.toImage(planarXY(chain.Samples[i]))
			dc.DrawLine(x0, y0, x1, y1)
		}
		dc.Stroke()
		for _, s := range chain.Samples {
			x, y := cfg.toImage(planarXY(s))
			dc.DrawCircle(x, y, 3)
			dc.Fill()
			if st.Kind == sampling.SE2 {
				drawFoot(dc, cfg, s, x, y)
			}
		}
	}

	if len(st.Target) >= 2 {
		x, y := cfg.toImage(planarXY(st.Target))
		dc.SetColor(targetColor)
		dc.SetLineWidth(2)
		dc.DrawLine(x-6, y, x+6, y)
		dc.DrawLine(x, y-6, x, y+6)
		dc.Stroke()
	}

	if err := dc.SavePNG(path); err != nil {
		return errors.Wrapf(err, "writing chain image %s", path)
	}
	return nil
}

func planarXY(s sampling.Sample) (float64, float64) {
	if len(s) < 2 {
		return s[0], 0
	}
	return s[0], s[1]
}

func drawFoot(dc *gg.Context, cfg DrawConfig, s sampling.Sample, x, y float64) {
	yaw := math.Atan2(s[3], s[2])
	length := cfg.FootLength * cfg.Scale
	width := cfg.FootWidth * cfg.Scale
	dc.Push()
	dc.RotateAbout(-yaw, x, y)
	dc.DrawRectangle(x-length/2, y-width/2, length, width)
	dc.Stroke()
	dc.Pop()
}
