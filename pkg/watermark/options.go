package watermark

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Anchor names one of the four frame corners a watermark can be pinned to.
type Anchor string

const (
	TopLeft     Anchor = "top-left"
	TopRight    Anchor = "top-right"
	BottomLeft  Anchor = "bottom-left"
	BottomRight Anchor = "bottom-right"
)

// Valid reports whether a is one of the four named corners.
func (a Anchor) Valid() bool {
	switch a {
	case TopLeft, TopRight, BottomLeft, BottomRight:
		return true
	}
	return false
}

// Position is either a named anchor or an explicit top-left draw coordinate.
// When Anchor is empty, X and Y are used as-is with no clamping.
type Position struct {
	Anchor Anchor
	X, Y   int
}

// Corner returns a Position pinned to the given anchor.
func Corner(a Anchor) Position {
	return Position{Anchor: a}
}

// At returns an explicit coordinate Position.
func At(x, y int) Position {
	return Position{X: x, Y: y}
}

// IsAnchor reports whether p refers to a named corner.
func (p Position) IsAnchor() bool {
	return p.Anchor != ""
}

func (p Position) String() string {
	if p.IsAnchor() {
		return string(p.Anchor)
	}
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// ParsePosition accepts an anchor name or an "x,y" pair.
func ParsePosition(s string) (Position, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if a := Anchor(raw); a.Valid() {
		return Corner(a), nil
	}
	parts := strings.Split(strings.Trim(raw, "()[]"), ",")
	if len(parts) != 2 {
		return Position{}, fmt.Errorf("invalid position %q: want one of %s, %s, %s, %s or x,y",
			s, TopLeft, TopRight, BottomLeft, BottomRight)
	}
	var xy [2]int
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Position{}, fmt.Errorf("invalid position coordinate %q: %w", part, err)
		}
		xy[i] = int(math.Floor(v))
	}
	return At(xy[0], xy[1]), nil
}

// UnmarshalJSON accepts either a string ("bottom-right", "50,50") or a
// two-number array ([50, 50]).
func (p *Position) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		pos, err := ParsePosition(s)
		if err != nil {
			return err
		}
		*p = pos
		return nil
	}
	var xy []float64
	if err := json.Unmarshal(data, &xy); err != nil {
		return fmt.Errorf("position must be an anchor name or [x, y]: %w", err)
	}
	if len(xy) != 2 {
		return fmt.Errorf("position coordinate needs 2 numbers, got %d", len(xy))
	}
	*p = At(int(math.Floor(xy[0])), int(math.Floor(xy[1])))
	return nil
}

func (p Position) MarshalJSON() ([]byte, error) {
	if p.IsAnchor() {
		return json.Marshal(string(p.Anchor))
	}
	return json.Marshal([2]int{p.X, p.Y})
}

// Options is the immutable watermark description shared by every job of a run.
type Options struct {
	Text     string
	Position Position
	// FontPath is optional; an empty or unloadable path falls back to Go Regular.
	FontPath string
	// FontSizeRatio is the fraction of the frame's shorter side used as font size.
	FontSizeRatio float64
	// Transparency is the alpha of the background plate.
	Transparency    uint8
	TextColor       color.NRGBA
	BackgroundColor color.NRGBA
	// JPEGQuality applies to JPEG outputs only.
	JPEGQuality int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Text:            "Sample Watermark",
		Position:        Corner(BottomRight),
		FontSizeRatio:   0.05,
		Transparency:    128,
		TextColor:       color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		BackgroundColor: color.NRGBA{A: 255},
		JPEGQuality:     95,
	}
}

func (o Options) textColor() color.NRGBA {
	c := o.TextColor
	c.A = 255
	return c
}

func (o Options) plateColor() color.NRGBA {
	c := o.BackgroundColor
	c.A = o.Transparency
	return c
}
