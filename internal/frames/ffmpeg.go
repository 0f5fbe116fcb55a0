package frames

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// FFmpeg samples frames by piping raw RGB out of an ffmpeg subprocess.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// NewFFmpeg resolves both binaries on PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string, logger *slog.Logger) (*FFmpeg, error) {
	ff, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	fp, err := exec.LookPath(ffprobePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}
	return &FFmpeg{ffmpeg: ff, ffprobe: fp, logger: logger}, nil
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the first video stream's geometry and timing.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, f.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, truncate(stderr.String(), 512))
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (*VideoInfo, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			return nil, fmt.Errorf("video stream has no dimensions")
		}
		info := &VideoInfo{
			Width:     s.Width,
			Height:    s.Height,
			Codec:     s.CodecName,
			FrameRate: parseRate(s.RFrameRate),
		}
		info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
		if info.Duration == 0 {
			info.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
		}
		return info, nil
	}
	return nil, fmt.Errorf("no video stream found")
}

// parseRate parses ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Sample streams frames taken every 1/fps seconds starting at zero.
func (f *FFmpeg) Sample(ctx context.Context, path string, info *VideoInfo, fps float64, fn func(Frame) error) (int, error) {
	if fps <= 0 {
		return 0, fmt.Errorf("fps must be positive, got %v", fps)
	}

	if info == nil {
		var err error
		if info, err = f.Probe(ctx, path); err != nil {
			return 0, err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-noautorotate",
		"-i", path,
		"-an",
		"-vf", "fps=" + strconv.FormatFloat(fps, 'f', -1, 64),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}
	cmd := exec.CommandContext(runCtx, f.ffmpeg, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("ffmpeg stdout: %w", err)
	}

	start := time.Now()
	f.logger.Debug("executing ffmpeg", "args", args)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	count, sampleErr := readFrames(bufio.NewReaderSize(stdout, 1<<20), info.Width, info.Height, fps, fn)
	if sampleErr != nil {
		cancel()
		io.Copy(io.Discard, stdout)
		cmd.Wait()
		return count, sampleErr
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		return count, fmt.Errorf("ffmpeg failed: %w: %s", err, truncate(stderr.String(), 512))
	}

	f.logger.Info("frames sampled",
		"frames", count,
		"fps", fps,
		"width", info.Width,
		"height", info.Height,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return count, nil
}

// readFrames cuts a raw rgb24 stream into w*h frames.
func readFrames(r io.Reader, w, h int, fps float64, fn func(Frame) error) (int, error) {
	buf := make([]byte, w*h*3)
	count := 0
	for {
		_, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return count, fmt.Errorf("truncated frame %d", count)
		}
		if err != nil {
			return count, fmt.Errorf("read frame %d: %w", count, err)
		}

		frame := Frame{
			Index:     count,
			Timestamp: FrameTimestamp(count, fps),
			Image:     rgbToRGBA(buf, w, h),
		}
		if err := fn(frame); err != nil {
			return count, err
		}
		count++
	}
}

func rgbToRGBA(rgb []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i+2 < len(rgb); i, j = i+3, j+4 {
		img.Pix[j] = rgb[i]
		img.Pix[j+1] = rgb[i+1]
		img.Pix[j+2] = rgb[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
