// Package frames samples still frames out of stored videos at a fixed rate.
package frames

import (
	"context"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
	"time"
)

// Frame is one sampled still. Index counts sampled frames from zero and
// Timestamp is Index/fps.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Image     *image.RGBA
}

// VideoInfo is the subset of ffprobe metadata the pipelines need.
type VideoInfo struct {
	Width     int
	Height    int
	Duration  float64 // seconds
	FrameRate float64
	Codec     string
}

// Sampler decodes a video and hands frames sampled at fps to fn, in order.
// An error returned by fn stops decoding and is returned unchanged. info is
// the result of an earlier Probe of path; when nil, Sample runs Probe itself.
type Sampler interface {
	Probe(ctx context.Context, path string) (*VideoInfo, error)
	Sample(ctx context.Context, path string, info *VideoInfo, fps float64, fn func(Frame) error) (int, error)
}

// FrameTimestamp returns the presentation time of the i-th frame sampled at fps,
// rounded to the microsecond.
func FrameTimestamp(i int, fps float64) time.Duration {
	us := math.Round(float64(i) / fps * 1e6)
	return time.Duration(us) * time.Microsecond
}

// FormatTimestamp renders d as H:MM:SS, with a .ffffff suffix when there is a
// sub-second part and a "N day(s), " prefix past 24 hours.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	us := d.Microseconds()
	days := us / (24 * 3600 * 1e6)
	us -= days * 24 * 3600 * 1e6

	h := us / 3600e6
	us -= h * 3600e6
	m := us / 60e6
	us -= m * 60e6
	s := us / 1e6
	us -= s * 1e6

	out := fmt.Sprintf("%d:%02d:%02d", h, m, s)
	if us > 0 {
		out += fmt.Sprintf(".%06d", us)
	}
	if days > 0 {
		plural := "s"
		if days == 1 {
			plural = ""
		}
		out = fmt.Sprintf("%d day%s, %s", days, plural, out)
	}
	return out
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var total time.Duration

	if i := strings.Index(s, ", "); i != -1 {
		dayPart := strings.Fields(s[:i])
		if len(dayPart) != 2 || !strings.HasPrefix(dayPart[1], "day") {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		days, err := strconv.Atoi(dayPart[0])
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		total += time.Duration(days) * 24 * time.Hour
		s = s[i+2:]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m > 59 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || sec >= 60 || sec < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	total += time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	total += time.Duration(math.Round(sec*1e6)) * time.Microsecond
	return total, nil
}
