package api

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/heimdex/vidtopics/internal/export"
	"github.com/heimdex/vidtopics/internal/report"
	"github.com/heimdex/vidtopics/internal/store"
)

func exportReportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		project, user, name := q.Get("project_id"), q.Get("user_id"), q.Get("report_id")
		if project == "" || user == "" || name == "" {
			WriteError(w, http.StatusBadRequest, "project_id, user_id and report_id are required", "BAD_REQUEST")
			return
		}
		format, err := export.ParseFormat(q.Get("format"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		// a video name is accepted in place of its report name
		if !strings.HasSuffix(name, ".txt") {
			name = store.ReportName(name)
		}
		path, err := cfg.Store.FilePath(project, user, store.FileTypeReport, name)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		records, err := report.Read(path)
		if err != nil {
			cfg.Logger.Error("failed to read report", "report", name, "error", err)
			WriteError(w, http.StatusUnprocessableEntity, "report is malformed: "+err.Error(), "BAD_REPORT")
			return
		}

		interval := 10 * time.Second
		if cfg.SampleFPS > 0 {
			interval = time.Duration(float64(time.Second) / cfg.SampleFPS)
		}
		body, err := export.Render(format, name, export.Cues(records, interval))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to export report", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": export.FileName(name, format)}))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

// writeStoreError maps store errors onto status codes for the non-legacy routes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, store.ErrInvalidFileType):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		WriteError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}
