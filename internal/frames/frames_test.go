package frames

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00:00"},
		{10 * time.Second, "0:00:10"},
		{70 * time.Second, "0:01:10"},
		{3*time.Hour + 2*time.Minute + 5*time.Second, "3:02:05"},
		{1500 * time.Millisecond, "0:00:01.500000"},
		{25 * time.Hour, "1 day, 1:00:00"},
		{50 * time.Hour, "2 days, 2:00:00"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFrameTimestamp(t *testing.T) {
	// 3/0.1 is 30.000000000000004 in floating point; rounding keeps it whole.
	if got := FormatTimestamp(FrameTimestamp(3, 0.1)); got != "0:00:30" {
		t.Errorf("FrameTimestamp(3, 0.1) = %q, want 0:00:30", got)
	}
	if got := FrameTimestamp(1, 3); got != 333333*time.Microsecond {
		t.Errorf("FrameTimestamp(1, 3) = %v", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	for _, d := range []time.Duration{0, 10 * time.Second, 3723 * time.Second, 1500 * time.Millisecond, 49 * time.Hour} {
		got, err := ParseTimestamp(FormatTimestamp(d))
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) error = %v", FormatTimestamp(d), err)
		}
		if got != d {
			t.Errorf("ParseTimestamp(FormatTimestamp(%v)) = %v", d, got)
		}
	}

	for _, bad := range []string{"", "10", "0:61:00", "a:00:00", "0:00:75", "x days, 0:00:00"} {
		if _, err := ParseTimestamp(bad); err == nil {
			t.Errorf("ParseTimestamp(%q) expected error", bad)
		}
	}
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "video", "codec_name": "h264", "width": 640, "height": 360, "r_frame_rate": "30000/1001"}
		],
		"format": {"duration": "42.5"}
	}`)

	info, err := parseProbe(data)
	if err != nil {
		t.Fatalf("parseProbe() error = %v", err)
	}
	if info.Width != 640 || info.Height != 360 {
		t.Errorf("dimensions = %dx%d, want 640x360", info.Width, info.Height)
	}
	if info.Duration != 42.5 {
		t.Errorf("Duration = %v, want 42.5 from format", info.Duration)
	}
	if info.FrameRate < 29.9 || info.FrameRate > 30 {
		t.Errorf("FrameRate = %v, want ~29.97", info.FrameRate)
	}

	if _, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio"}]}`)); err == nil {
		t.Error("expected error without a video stream")
	}
}

func TestReadFrames(t *testing.T) {
	const w, h = 2, 1
	// two frames of 2x1 rgb24
	raw := []byte{
		255, 0, 0, 0, 255, 0,
		0, 0, 255, 10, 20, 30,
	}

	var got []Frame
	n, err := readFrames(bytes.NewReader(raw), w, h, 0.1, func(f Frame) error {
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatalf("readFrames() error = %v", err)
	}
	if n != 2 || len(got) != 2 {
		t.Fatalf("frames = %d/%d, want 2", n, len(got))
	}
	if got[1].Timestamp != 10*time.Second {
		t.Errorf("frame 1 timestamp = %v, want 10s", got[1].Timestamp)
	}
	r, g, b, a := got[1].Image.At(1, 0).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 || a>>8 != 255 {
		t.Errorf("pixel = %d,%d,%d,%d", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestReadFrames_Truncated(t *testing.T) {
	_, err := readFrames(bytes.NewReader([]byte{1, 2, 3, 4}), 2, 1, 1, func(Frame) error { return nil })
	if err == nil {
		t.Fatal("expected error for a truncated frame")
	}
}

func TestReadFrames_CallbackErrorStops(t *testing.T) {
	raw := make([]byte, 3*3)
	stop := errors.New("stop")
	calls := 0
	n, err := readFrames(bytes.NewReader(raw), 1, 1, 1, func(Frame) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("error = %v, want stop", err)
	}
	if calls != 1 || n != 0 {
		t.Errorf("calls = %d, n = %d, want 1, 0", calls, n)
	}
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 4}
	lw.Write([]byte("abc"))
	lw.Write([]byte("defg"))
	if buf.String() != "defg" {
		t.Errorf("tail = %q, want defg", buf.String())
	}
}

func TestFFmpeg_Sample(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}

	video := filepath.Join(t.TempDir(), "clip.mp4")
	gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi", "-i", "testsrc=duration=25:size=64x48:rate=5",
		"-pix_fmt", "yuv420p", video)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test video: %v: %s", err, out)
	}

	ff, err := NewFFmpeg("ffmpeg", "ffprobe", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewFFmpeg() error = %v", err)
	}

	var stamps []time.Duration
	n, err := ff.Sample(context.Background(), video, nil, 0.1, func(f Frame) error {
		if f.Image.Bounds().Dx() != 64 || f.Image.Bounds().Dy() != 48 {
			t.Errorf("frame %d size = %v", f.Index, f.Image.Bounds())
		}
		stamps = append(stamps, f.Timestamp)
		return nil
	})
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if n != len(stamps) || n < 2 {
		t.Fatalf("Sample() = %d frames (%d delivered), want >= 2", n, len(stamps))
	}
	for i, ts := range stamps {
		if ts != time.Duration(i)*10*time.Second {
			t.Errorf("frame %d timestamp = %v", i, ts)
		}
	}
}
