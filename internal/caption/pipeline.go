package caption

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/heimdex/vidtopics/internal/frames"
	"github.com/heimdex/vidtopics/internal/logging"
	"github.com/heimdex/vidtopics/internal/report"
	"github.com/heimdex/vidtopics/internal/store"
)

// Request identifies a stored video to caption.
type Request struct {
	Project string
	User    string
	Video   string
	Save    bool // also write captioned stills to the images collection
}

// Result describes a finished captioning run.
type Result struct {
	Video      string
	ReportPath string
	Frames     int
	Records    []report.Record
	Duration   time.Duration
}

// Progress is reported after each captioned frame. expected is an estimate
// from the video duration and may be zero when the duration is unknown.
type Progress struct {
	Done     int
	Expected int
	Record   report.Record
}

type ProgressFunc func(Progress)

type PipelineConfig struct {
	Store     *store.Store
	Sampler   frames.Sampler
	Captioner Captioner
	FPS       float64
	Logger    *slog.Logger
}

// Pipeline turns a video into a caption report.
type Pipeline struct {
	store     *store.Store
	sampler   frames.Sampler
	captioner Captioner
	fps       float64
	logger    *slog.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		store:     cfg.Store,
		sampler:   cfg.Sampler,
		captioner: cfg.Captioner,
		fps:       cfg.FPS,
		logger:    cfg.Logger,
	}
}

// ProcessVideo samples the video, captions every frame and writes the report.
// Any failure aborts the run and leaves the previous report, if any, untouched.
func (p *Pipeline) ProcessVideo(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	start := time.Now()

	videoPath, err := p.store.FilePath(req.Project, req.User, store.FileTypeVideo, req.Video)
	if err != nil {
		return nil, err
	}
	reportPath, err := p.store.ReportPath(req.Project, req.User, req.Video)
	if err != nil {
		return nil, err
	}

	var imagesDir string
	if req.Save {
		imagesDir, err = p.store.CollectionDir(req.Project, req.User, store.FileTypeImage)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(imagesDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create images dir: %w", err)
		}
	}

	// stream metadata is read once here and handed to Sample
	expected := 0
	info, err := p.sampler.Probe(ctx, videoPath)
	if err != nil {
		p.logger.Debug("reading stream metadata failed, frame count unknown", "video", req.Video, "error", err)
	} else if info.Duration > 0 {
		expected = int(math.Ceil(info.Duration * p.fps))
	}

	logger := logging.WithProject(p.logger, req.Project, req.User).With("video", req.Video)
	logger.Info("captioning video", "fps", p.fps, "save", req.Save, "expected_frames", expected)

	var records []report.Record
	n, err := p.sampler.Sample(ctx, videoPath, info, p.fps, func(f frames.Frame) error {
		text, err := p.captioner.Caption(ctx, f.Image)
		if err != nil {
			return fmt.Errorf("caption frame %d: %w", f.Index, err)
		}
		rec := report.Record{Timestamp: f.Timestamp, Caption: text}

		if req.Save {
			path := filepath.Join(imagesDir, FrameImageName(req.Video, f.Index))
			if err := SaveCaptionedFrame(path, f.Image, text); err != nil {
				return fmt.Errorf("save frame %d: %w", f.Index, err)
			}
		}

		records = append(records, rec)
		logger.Debug("frame captioned", "timestamp", frames.FormatTimestamp(f.Timestamp), "caption", text)
		if progress != nil {
			progress(Progress{Done: len(records), Expected: max(expected, len(records)), Record: rec})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", req.Video, err)
	}

	if err := report.Write(reportPath, records); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	res := &Result{
		Video:      req.Video,
		ReportPath: reportPath,
		Frames:     n,
		Records:    records,
		Duration:   time.Since(start),
	}
	logger.Info("video processed",
		"frames", n,
		"report", filepath.Base(reportPath),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
