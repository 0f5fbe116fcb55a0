package playback

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/heimdex/vidtopics/internal/store"
)

func setupStore(t *testing.T) (*Server, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	if _, err := st.CreateUser("p", "u"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	name, err := st.SaveUpload("p", "u", store.FileTypeVideo, "clip.mp4", strings.NewReader("0123456789"))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}
	return NewServer(st, logger), name
}

func TestServeStored_Full(t *testing.T) {
	srv, name := setupStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := srv.ServeStored(rec, req, "p", "u", store.FileTypeVideo, name, false); err != nil {
		t.Fatalf("ServeStored() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "0123456789" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", got)
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("Accept-Ranges header missing")
	}
}

func TestServeStored_Range(t *testing.T) {
	srv, name := setupStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	if err := srv.ServeStored(rec, req, "p", "u", store.FileTypeVideo, name, true); err != nil {
		t.Fatalf("ServeStored() error = %v", err)
	}
	if rec.Code != http.StatusPartialContent {
		t.Errorf("status = %d, want 206", rec.Code)
	}
	if rec.Body.String() != "2345" {
		t.Errorf("body = %q, want 2345", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(got, "attachment") {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestServeStored_Unsatisfiable(t *testing.T) {
	srv, name := setupStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=50-")
	rec := httptest.NewRecorder()
	if err := srv.ServeStored(rec, req, "p", "u", store.FileTypeVideo, name, false); err != nil {
		t.Fatalf("ServeStored() error = %v", err)
	}
	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("status = %d, want 416", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */10" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestServeStored_ReversedRangeServesWholeFile(t *testing.T) {
	srv, name := setupStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=5-3")
	rec := httptest.NewRecorder()
	if err := srv.ServeStored(rec, req, "p", "u", store.FileTypeVideo, name, false); err != nil {
		t.Fatalf("ServeStored() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "0123456789" {
		t.Errorf("body = %q, want whole file", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Range"); got != "" {
		t.Errorf("Content-Range = %q, want empty", got)
	}
}

func TestServeStored_Head(t *testing.T) {
	srv, name := setupStore(t)

	req := httptest.NewRequest(http.MethodHead, "/", nil)
	rec := httptest.NewRecorder()
	if err := srv.ServeStored(rec, req, "p", "u", store.FileTypeVideo, name, false); err != nil {
		t.Fatalf("ServeStored() error = %v", err)
	}
	if rec.Body.Len() != 0 || rec.Header().Get("Content-Length") != "10" {
		t.Errorf("HEAD body=%d content-length=%q", rec.Body.Len(), rec.Header().Get("Content-Length"))
	}
}

func TestServeStored_NotFound(t *testing.T) {
	srv, _ := setupStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	err := srv.ServeStored(rec, req, "p", "u", store.FileTypeVideo, "nope.mp4", false)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ServeStored() error = %v, want ErrNotFound", err)
	}
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Error("ServeStored() wrote a response for a missing file")
	}
}
