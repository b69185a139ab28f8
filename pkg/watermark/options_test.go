package watermark

import (
	"encoding/json"
	"testing"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    Position
		wantErr bool
	}{
		{in: "top-left", want: Corner(TopLeft)},
		{in: "Bottom-Right", want: Corner(BottomRight)},
		{in: " top-right ", want: Corner(TopRight)},
		{in: "bottom-left", want: Corner(BottomLeft)},
		{in: "50,50", want: At(50, 50)},
		{in: "(12, 7)", want: At(12, 7)},
		{in: "[3.9,-2]", want: At(3, -2)},
		{in: "center", wantErr: true},
		{in: "1,2,3", wantErr: true},
		{in: "a,b", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePosition(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePosition(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePosition(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePosition(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPositionJSON(t *testing.T) {
	tests := []struct {
		raw     string
		want    Position
		wantErr bool
	}{
		{raw: `"top-right"`, want: Corner(TopRight)},
		{raw: `[50, 50]`, want: At(50, 50)},
		{raw: `[10.7, 20.2]`, want: At(10, 20)},
		{raw: `"50,60"`, want: At(50, 60)},
		{raw: `[1]`, wantErr: true},
		{raw: `{"x": 1}`, wantErr: true},
		{raw: `"middle"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var got Position
			err := json.Unmarshal([]byte(tt.raw), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Unmarshal(%s) = %v, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.raw, got, tt.want)
			}

			data, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var back Position
			if err := json.Unmarshal(data, &back); err != nil || back != got {
				t.Errorf("re-decoding %s gave %v, %v", data, back, err)
			}
		})
	}
}

func TestPositionJSONNullKeepsValue(t *testing.T) {
	p := Corner(BottomLeft)
	if err := json.Unmarshal([]byte(`null`), &p); err != nil {
		t.Fatalf("Unmarshal(null): %v", err)
	}
	if p != Corner(BottomLeft) {
		t.Errorf("null changed position to %v", p)
	}
}

func TestOptionsColors(t *testing.T) {
	opts := DefaultOptions()
	opts.TextColor.A = 3
	opts.Transparency = 77
	if c := opts.textColor(); c.A != 255 {
		t.Errorf("text alpha = %d, want 255", c.A)
	}
	if c := opts.plateColor(); c.A != 77 {
		t.Errorf("plate alpha = %d, want 77", c.A)
	}
}
