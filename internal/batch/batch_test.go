package batch

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"mediawatermark/pkg/watermark"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"photo.png", Image},
		{"photo.JPG", Image},
		{"photo.jpeg", Image},
		{"clip.mp4", Video},
		{"clip.AVI", Video},
		{"clip.mov", Video},
		{"clip.mkv", Video},
		{"anim.gif", AnimatedImage},
		{"notes.txt", Unsupported},
		{"archive.png.zip", Unsupported},
		{"png", Unsupported},
		{"", Unsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.name); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPlan(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	touch(t, in, "b.MP4", "a.png", "c.txt", "d.gif")
	if err := os.Mkdir(filepath.Join(in, "nested.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	jobs, skipped, err := Plan(in, out)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []Job{
		{Input: filepath.Join(in, "a.png"), Output: filepath.Join(out, "watermarked_a.png"), Kind: Image},
		{Input: filepath.Join(in, "b.MP4"), Output: filepath.Join(out, "watermarked_b.MP4"), Kind: Video},
		{Input: filepath.Join(in, "d.gif"), Output: filepath.Join(out, "watermarked_d.gif"), Kind: AnimatedImage},
	}
	if len(jobs) != len(want) {
		t.Fatalf("jobs = %+v, want %+v", jobs, want)
	}
	for i := range want {
		if jobs[i] != want[i] {
			t.Errorf("job %d = %+v, want %+v", i, jobs[i], want[i])
		}
	}
	if len(skipped) != 1 || skipped[0] != filepath.Join(in, "c.txt") {
		t.Errorf("skipped = %v, want [c.txt]", skipped)
	}
}

func TestPlanMissingFolder(t *testing.T) {
	if _, _, err := Plan(filepath.Join(t.TempDir(), "nope"), t.TempDir()); err == nil {
		t.Fatal("Plan succeeded on missing folder")
	}
}

type fakeHandler struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls map[string]Kind
}

func newFakeHandler(fail ...string) *fakeHandler {
	h := &fakeHandler{fail: map[string]bool{}, calls: map[string]Kind{}}
	for _, f := range fail {
		h.fail[f] = true
	}
	return h
}

func (h *fakeHandler) record(ctx context.Context, in string, k Kind) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls[filepath.Base(in)] = k
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.fail[filepath.Base(in)] {
		return errors.New("boom")
	}
	return nil
}

func (h *fakeHandler) ProcessImage(ctx context.Context, in, out string) error {
	return h.record(ctx, in, Image)
}

func (h *fakeHandler) ProcessVideo(ctx context.Context, in, out string) error {
	return h.record(ctx, in, Video)
}

func (h *fakeHandler) ProcessAnimatedImage(ctx context.Context, in, out string) error {
	return h.record(ctx, in, AnimatedImage)
}

func TestRunIsolatesFailures(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 16} {
		in := t.TempDir()
		out := filepath.Join(t.TempDir(), "made")
		touch(t, in, "1.png", "2.jpg", "3.gif", "4.mkv", "5.jpeg", "notes.md")

		h := newFakeHandler("2.jpg")
		sum, err := NewRunner(h, workers, nil).Run(context.Background(), in, out)
		if err != nil {
			t.Fatalf("workers=%d: Run: %v", workers, err)
		}
		if want := (Summary{Succeeded: 4, Failed: 1, Skipped: 1}); sum != want {
			t.Errorf("workers=%d: summary = %+v, want %+v", workers, sum, want)
		}

		var called []string
		for name := range h.calls {
			called = append(called, name)
		}
		sort.Strings(called)
		if len(called) != 5 {
			t.Errorf("workers=%d: handler called for %v, want all 5 supported files", workers, called)
		}
		if h.calls["3.gif"] != AnimatedImage || h.calls["4.mkv"] != Video || h.calls["1.png"] != Image {
			t.Errorf("workers=%d: wrong dispatch: %v", workers, h.calls)
		}
		if fi, err := os.Stat(out); err != nil || !fi.IsDir() {
			t.Errorf("workers=%d: output folder not created: %v", workers, err)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "a.png", "b.png", "c.png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := NewRunner(newFakeHandler(), 2, nil).Run(ctx, in, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 3 || sum.Succeeded != 0 {
		t.Errorf("summary = %+v, want all 3 failed", sum)
	}
}

func TestRunMissingInputFolder(t *testing.T) {
	_, err := NewRunner(newFakeHandler(), 1, nil).Run(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	if err == nil {
		t.Fatal("Run succeeded without an input folder")
	}
}

func TestDispatchUnsupported(t *testing.T) {
	err := Dispatch(context.Background(), newFakeHandler(), Job{Input: "x.txt"})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Dispatch = %v, want ErrUnsupported", err)
	}
}

func TestRunWithProcessor(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "watermarked")

	img := image.NewNRGBA(image.Rect(0, 0, 200, 120))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	if err := imaging.Save(img, filepath.Join(in, "a.png")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "b.jpg"), []byte("corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeTestGIF(t, filepath.Join(in, "c.gif"))
	touch(t, in, "readme.txt")

	fnt, err := watermark.LoadFont("", nil)
	if err != nil {
		t.Fatal(err)
	}
	opts := watermark.DefaultOptions()
	opts.Text = "BATCH"
	proc := watermark.NewProcessor(opts, fnt, nil)

	sum, err := NewRunner(proc, 1, nil).Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := (Summary{Succeeded: 2, Failed: 1, Skipped: 1}); sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}

	for _, name := range []string{"watermarked_a.png", "watermarked_c.gif"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "watermarked_b.jpg")); !os.IsNotExist(err) {
		t.Errorf("output written for corrupt input: %v", err)
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 2 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("output folder holds %v, want exactly 2 files", names)
	}
}

func writeTestGIF(t *testing.T, path string) {
	t.Helper()
	pal := color.Palette{color.Black, color.White}
	r := image.Rect(0, 0, 64, 48)
	g := &gif.GIF{
		Image: []*image.Paletted{image.NewPaletted(r, pal), image.NewPaletted(r, pal)},
		Delay: []int{10, 20},
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := gif.EncodeAll(f, g); err != nil {
		t.Fatal(err)
	}
}
