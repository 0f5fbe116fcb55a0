// Package playback streams stored media with HTTP range support so browsers
// can seek inside uploaded videos.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/heimdex/vidtopics/internal/store"
)

type Server struct {
	store  *store.Store
	logger *slog.Logger
}

func NewServer(st *store.Store, logger *slog.Logger) *Server {
	return &Server{store: st, logger: logger}
}

// ServeStored resolves a stored file and streams it. A missing file is
// reported as store.ErrNotFound before anything is written.
func (s *Server) ServeStored(w http.ResponseWriter, r *http.Request, project, user string, ft store.FileType, name string, download bool) error {
	path, err := s.store.FilePath(project, user, ft, name)
	if err != nil {
		return err
	}
	if download {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	return s.serveFile(w, r, path)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", filepath.Base(path), store.ErrNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	size := info.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType(path))
	h.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	rng, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		// a malformed Range header is ignored and the whole file is served
		rng = nil
	}

	status, offset, length := http.StatusOK, int64(0), size
	if rng != nil {
		status, offset, length = http.StatusPartialContent, rng.Start, rng.Length()
		h.Set("Content-Range", rng.ContentRange(size))
	}
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	start := time.Now()
	n, err := io.CopyN(w, f, length)
	if err != nil {
		// headers are gone; the client most likely hung up
		s.logger.Debug("file stream interrupted", "file", filepath.Base(path), "sent", n, "error", err)
		return nil
	}
	s.logger.Debug("file served", "file", filepath.Base(path), "bytes", n, "status", status,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func contentType(path string) string {
	ext := filepath.Ext(path)
	switch ext {
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".srt":
		return "application/x-subrip"
	case ".vtt":
		return "text/vtt; charset=utf-8"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
