package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/heimdex/vidtopics/internal/caption"
	"github.com/heimdex/vidtopics/internal/jobs"
)

// processVideoHandler captions a video synchronously: the response is written
// once the report is on disk. Progress is visible meanwhile on /jobs and
// /events.
func processVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, ok := queryArgs(w, r, "project_id", "user_id", "video_id")
		if !ok {
			return
		}
		req := caption.Request{
			Project: args[0],
			User:    args[1],
			Video:   args[2],
			Save:    parseBool(r.URL.Query().Get("save")),
		}

		tmpl := jobs.Job{Type: jobs.TypeProcessVideo, Project: req.Project, User: req.User, Target: req.Video}
		job, err := cfg.Tracker.Track(r.Context(), tmpl, func(ctx context.Context, h *jobs.Handle) error {
			return cfg.CaptionPool.Do(ctx, func(ctx context.Context) error {
				h.Running()
				res, err := cfg.Captions.ProcessVideo(ctx, req, func(p caption.Progress) {
					h.Progress(p.Done, p.Expected, p.Record.Caption)
				})
				if err != nil {
					return err
				}
				h.SetResult(filepath.ToSlash(filepath.Join(req.User, "reports", filepath.Base(res.ReportPath))))
				return nil
			})
		})
		if err != nil {
			writeLegacyError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, StatusMessage{
			Status: fmt.Sprintf("%s has been processed!", req.Video),
			JobID:  job.ID,
		})
	}
}

// processReportsHandler returns the topic page of a project as text/html.
func processReportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, ok := queryArgs(w, r, "project_id")
		if !ok {
			return
		}
		project := args[0]

		k := cfg.DefaultTopics
		if s := r.URL.Query().Get("n_topics"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				writeLegacyError(w, fmt.Errorf("invalid argument n_topics: %q", s))
				return
			}
			k = n
		}

		var page string
		tmpl := jobs.Job{Type: jobs.TypeProcessReports, Project: project, Target: strconv.Itoa(k)}
		_, err := cfg.Tracker.Track(r.Context(), tmpl, func(ctx context.Context, h *jobs.Handle) error {
			return cfg.TopicPool.Do(ctx, func(ctx context.Context) error {
				h.Running()
				var err error
				page, err = cfg.Topics.ProcessReports(ctx, project, k)
				return err
			})
		})
		if err != nil {
			writeLegacyError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(page)); err != nil {
			cfg.Logger.Debug("failed to write topic page", "error", err)
		}
	}
}

// parseBool treats "true", "1", "yes" and "on" as true, case-insensitively.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
