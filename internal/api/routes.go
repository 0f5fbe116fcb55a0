package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/vidtopics/internal/config"
	"github.com/heimdex/vidtopics/internal/jobs"
	"github.com/heimdex/vidtopics/internal/store"
	"github.com/heimdex/vidtopics/internal/workpool"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist(cfg.AllowedOrigins...))

	r.Get("/health", healthHandler(cfg))
	r.Get("/", uploadFormHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.APIToken, cfg.Logger))

		r.Get("/projects", listProjectsHandler(cfg))
		r.Get("/create_project", createProjectHandler(cfg))
		r.Get("/users", listUsersHandler(cfg))
		r.Get("/create_user", createUserHandler(cfg))
		r.Get("/available_files", availableFilesHandler(cfg))

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst, cfg.Logger))

			r.Post("/upload", uploadHandler(cfg))
			r.Get("/process_video", processVideoHandler(cfg))
			r.Get("/process_reports", processReportsHandler(cfg))
		})

		r.Get("/status", statusHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Get("/events", cfg.Hub.ServeWS)
		r.Get("/export_report", exportReportHandler(cfg))
		r.Get("/files/{project}/{user}/{file_type}/{name}", fileHandler(cfg))
		r.Head("/files/{project}/{user}/{file_type}/{name}", fileHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
			Backend: cfg.Backend,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resp := StatusResponse{State: "idle", Pools: []workpool.Stats{}}
		for _, p := range []*workpool.Pool{cfg.CaptionPool, cfg.TopicPool} {
			if p != nil {
				resp.Pools = append(resp.Pools, p.Stats())
			}
		}

		recent, err := cfg.Jobs.List(ctx, jobs.ListOptions{Limit: 20})
		if err != nil {
			cfg.Logger.Warn("failed to list jobs for status", "error", err)
		}
		for _, j := range recent {
			if !j.Finished() {
				resp.ActiveJobs = append(resp.ActiveJobs, JobToResponse(j))
				if j.Status == jobs.StatusRunning {
					resp.JobsRunning++
				}
				continue
			}
			if j.Status == jobs.StatusFailed && resp.LastError == "" {
				resp.LastError = j.Error
			}
		}
		if len(resp.ActiveJobs) > 0 {
			resp.State = "busy"
		}

		if cfg.Model != nil {
			if m := cfg.Model.Peek(); m != nil {
				resp.ModelLoaded = true
				resp.ModelLoadedAt = m.LoadedAt.Format(time.RFC3339)
			}
		}
		if cfg.ModelServer != nil {
			hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			resp.ModelServer = "ok"
			if err := cfg.ModelServer.Health(hctx); err != nil {
				resp.ModelServer = err.Error()
			}
			cancel()
		}
		if cfg.Hub != nil {
			resp.Subscribers = cfg.Hub.Subscribers()
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := jobs.ListOptions{Project: q.Get("project_id"), Status: q.Get("status")}
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			opts.Limit = min(n, 500)
		}

		list, err := cfg.Jobs.List(r.Context(), opts)
		if err != nil {
			cfg.Logger.Error("failed to list jobs", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(list))}
		for i, j := range list {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		job, err := cfg.Jobs.Get(r.Context(), id)
		if errors.Is(err, jobs.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if err != nil {
			cfg.Logger.Error("failed to get job", "job_id", id, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to get job", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func fileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ft, err := store.ParseFileType(chi.URLParam(r, "file_type"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		err = cfg.Playback.ServeStored(w, r,
			chi.URLParam(r, "project"),
			chi.URLParam(r, "user"),
			ft,
			chi.URLParam(r, "name"),
			parseBool(r.URL.Query().Get("download")),
		)
		if err != nil {
			cfg.Logger.Debug("file not served", "path", r.URL.Path, "error", err)
			writeStoreError(w, err)
		}
	}
}
