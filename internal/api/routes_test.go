package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/heimdex/vidtopics/internal/caption"
	"github.com/heimdex/vidtopics/internal/db"
	"github.com/heimdex/vidtopics/internal/events"
	"github.com/heimdex/vidtopics/internal/jobs"
	"github.com/heimdex/vidtopics/internal/playback"
	"github.com/heimdex/vidtopics/internal/report"
	"github.com/heimdex/vidtopics/internal/store"
	"github.com/heimdex/vidtopics/internal/topic"
	"github.com/heimdex/vidtopics/internal/workpool"
)

type fakeVideoProcessor struct {
	fn func(ctx context.Context, req caption.Request, progress caption.ProgressFunc) (*caption.Result, error)
}

func (f *fakeVideoProcessor) ProcessVideo(ctx context.Context, req caption.Request, progress caption.ProgressFunc) (*caption.Result, error) {
	return f.fn(ctx, req, progress)
}

type fakeReportProcessor struct {
	fn func(ctx context.Context, project string, k int) (string, error)
}

func (f *fakeReportProcessor) ProcessReports(ctx context.Context, project string, k int) (string, error) {
	return f.fn(ctx, project, k)
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

type fakeModelStatus struct{ model *caption.Model }

func (f fakeModelStatus) Peek() *caption.Model { return f.model }

type testEnv struct {
	cfg    ServerConfig
	router http.Handler
	store  *store.Store
	repo   *jobs.SQLiteRepository
}

func newTestEnv(t *testing.T, mutate func(*ServerConfig)) *testEnv {
	t.Helper()
	logger := testLogger()

	st, err := store.New(filepath.Join(t.TempDir(), "projects"), logger)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := jobs.NewRepository(database.Conn())
	hub := events.NewHub(logger)

	cfg := ServerConfig{
		Store: st,
		Captions: &fakeVideoProcessor{fn: func(ctx context.Context, req caption.Request, progress caption.ProgressFunc) (*caption.Result, error) {
			reportPath, err := st.ReportPath(req.Project, req.User, req.Video)
			if err != nil {
				return nil, err
			}
			if _, err := st.FilePath(req.Project, req.User, store.FileTypeVideo, req.Video); err != nil {
				return nil, err
			}
			records := []report.Record{{Timestamp: 0, Caption: "a dog"}, {Timestamp: 10 * time.Second, Caption: "a cat"}}
			for i, rec := range records {
				progress(caption.Progress{Done: i + 1, Expected: 2, Record: rec})
			}
			if err := report.Write(reportPath, records); err != nil {
				return nil, err
			}
			return &caption.Result{Video: req.Video, ReportPath: reportPath, Frames: 2, Records: records}, nil
		}},
		Topics: &fakeReportProcessor{fn: func(ctx context.Context, project string, k int) (string, error) {
			return "<html>topics " + project + "</html>", nil
		}},
		CaptionPool:   workpool.New("caption", 1),
		TopicPool:     workpool.New("topic", 2),
		Tracker:       jobs.NewTracker(repo, hub, logger),
		Jobs:          repo,
		Hub:           hub,
		Playback:      playback.NewServer(st, logger),
		Backend:       "model",
		DefaultTopics: 5,
		SampleFPS:     0.1,
		Logger:        logger,
		StartTime:     time.Now(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &testEnv{cfg: cfg, router: NewRouter(cfg), store: st, repo: repo}
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestProjectAndUserRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	body := decodeJSONBody(t, env.get(t, "/create_project?project_id=alpha"))
	if body["response"] != "Project created" {
		t.Errorf("create_project = %v", body)
	}
	body = decodeJSONBody(t, env.get(t, "/create_project?project_id=alpha"))
	if body["response"] != "Project already exists" {
		t.Errorf("second create_project = %v", body)
	}

	body = decodeJSONBody(t, env.get(t, "/create_user?project_id=alpha&user_id=bob"))
	if body["response"] != "User created" {
		t.Errorf("create_user = %v", body)
	}
	body = decodeJSONBody(t, env.get(t, "/create_user?project_id=alpha&user_id=bob"))
	if body["response"] != "User already exists" {
		t.Errorf("second create_user = %v", body)
	}

	body = decodeJSONBody(t, env.get(t, "/projects"))
	if projects, _ := body["projects"].([]interface{}); len(projects) != 1 || projects[0] != "alpha" {
		t.Errorf("projects = %v", body)
	}
	body = decodeJSONBody(t, env.get(t, "/users?project_id=alpha"))
	if users, _ := body["users"].([]interface{}); len(users) != 1 || users[0] != "bob" {
		t.Errorf("users = %v", body)
	}
	body = decodeJSONBody(t, env.get(t, "/available_files?project_id=alpha&user_id=bob&file_type=video"))
	if files, ok := body["video"].([]interface{}); !ok || len(files) != 0 {
		t.Errorf("available_files = %v", body)
	}
}

func TestLegacyErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		target string
		want   string
	}{
		{"/users", "missing argument project_id"},
		{"/create_user?project_id=p", "missing argument user_id"},
		{"/process_video?project_id=p&user_id=u", "missing argument video_id"},
		{"/users?project_id=nope", "not found"},
		{"/create_project?project_id=..", "invalid name"},
		{"/available_files?project_id=p&user_id=u&file_type=audio", "invalid file type"},
		{"/process_reports?project_id=p&n_topics=many", "invalid argument n_topics"},
	}
	for _, tt := range tests {
		rr := env.get(t, tt.target)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", tt.target, rr.Code)
		}
		body := decodeJSONBody(t, rr)
		msg, _ := body["error"].(string)
		if !strings.Contains(msg, tt.want) {
			t.Errorf("%s error = %q, want it to contain %q", tt.target, msg, tt.want)
		}
	}
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.store.CreateUser("p", "u"); err != nil {
		t.Fatal(err)
	}

	buf, ct := multipartUpload(t, nil, "holiday.mp4", "video-bytes")
	req := httptest.NewRequest(http.MethodPost, "/upload?project_id=p&user_id=u&file_type=video", buf)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	body := decodeJSONBody(t, rr)
	if body["status"] != "holiday.mp4 has been uploaded!" {
		t.Fatalf("upload response = %v", body)
	}
	stored, _ := body["file"].(string)
	if !strings.HasSuffix(stored, ".mp4") || stored == "holiday.mp4" {
		t.Errorf("stored name = %q", stored)
	}

	files, err := env.store.ListFiles("p", "u", store.FileTypeVideo)
	if err != nil || len(files) != 1 || files[0] != stored {
		t.Errorf("ListFiles() = %v, %v", files, err)
	}
}

func TestUpload_FormFields(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.store.CreateUser("p", "u"); err != nil {
		t.Fatal(err)
	}

	buf, ct := multipartUpload(t, map[string]string{"project_id": "p", "user_id": "u", "file_type": "report"}, "notes.txt", "0:00:00, a dog\n")
	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if body := decodeJSONBody(t, rr); body["status"] != "notes.txt has been uploaded!" {
		t.Fatalf("upload response = %v", body)
	}
	if files, _ := env.store.ListFiles("p", "u", store.FileTypeReport); len(files) != 1 {
		t.Errorf("reports = %v, want one", files)
	}
}

func TestUpload_Errors(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig) { cfg.MaxUploadBytes = 1024 })
	if _, err := env.store.CreateUser("p", "u"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		target  string
		file    string
		content string
		want    string
	}{
		{"no file", "/upload?project_id=p&user_id=u&file_type=video", "", "", "missing file"},
		{"missing user arg", "/upload?project_id=p&file_type=video", "a.mp4", "x", "missing argument user_id"},
		{"unknown user", "/upload?project_id=p&user_id=nobody&file_type=video", "a.mp4", "x", "not found"},
		{"too large", "/upload?project_id=p&user_id=u&file_type=video", "a.mp4", strings.Repeat("x", 8192), "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, ct := multipartUpload(t, nil, tt.file, tt.content)
			req := httptest.NewRequest(http.MethodPost, tt.target, buf)
			req.Header.Set("Content-Type", ct)
			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, req)

			msg, _ := decodeJSONBody(t, rr)["error"].(string)
			if !strings.Contains(msg, tt.want) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.want)
			}
		})
	}
}

func TestUploadForm(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.get(t, "/")
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rr.Body.String(), `action="/upload"`) {
		t.Error("upload form missing")
	}
}

func TestProcessVideo(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.store.CreateUser("p", "u"); err != nil {
		t.Fatal(err)
	}
	video, err := env.store.SaveUpload("p", "u", store.FileTypeVideo, "clip.mp4", strings.NewReader("v"))
	if err != nil {
		t.Fatal(err)
	}

	body := decodeJSONBody(t, env.get(t, "/process_video?project_id=p&user_id=u&video_id="+video))
	if body["status"] != video+" has been processed!" {
		t.Fatalf("process_video = %v", body)
	}

	reportPath, _ := env.store.ReportPath("p", "u", video)
	records, err := report.Read(reportPath)
	if err != nil || len(records) != 2 {
		t.Errorf("report = %v, %v", records, err)
	}

	jobID, _ := body["job_id"].(string)
	job, err := env.repo.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job.Status != jobs.StatusCompleted || job.Progress != 2 || job.Result != "u/reports/"+store.ReportName(video) {
		t.Errorf("job = %+v", job)
	}
	if s := env.cfg.CaptionPool.Stats(); s.Completed != 1 {
		t.Errorf("caption pool stats = %+v", s)
	}
}

func TestProcessVideo_FailureIsRecorded(t *testing.T) {
	env := newTestEnv(t, nil)

	body := decodeJSONBody(t, env.get(t, "/process_video?project_id=p&user_id=u&video_id=missing.mp4"))
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "not found") {
		t.Fatalf("process_video error = %v", body)
	}

	list, err := env.repo.List(context.Background(), jobs.ListOptions{})
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %v, %v", list, err)
	}
	if list[0].Status != jobs.StatusFailed || list[0].Error == "" {
		t.Errorf("job = %+v", list[0])
	}
}

func TestProcessReports(t *testing.T) {
	var gotK int
	env := newTestEnv(t, func(cfg *ServerConfig) {
		cfg.Topics = &fakeReportProcessor{fn: func(ctx context.Context, project string, k int) (string, error) {
			gotK = k
			if project == "empty" {
				return "", topic.ErrNoDocuments
			}
			return "<html>topics</html>", nil
		}}
	})

	rr := env.get(t, "/process_reports?project_id=p")
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if rr.Body.String() != "<html>topics</html>" || gotK != 5 {
		t.Errorf("body = %q, k = %d", rr.Body.String(), gotK)
	}

	env.get(t, "/process_reports?project_id=p&n_topics=3")
	if gotK != 3 {
		t.Errorf("k = %d, want 3", gotK)
	}

	body := decodeJSONBody(t, env.get(t, "/process_reports?project_id=empty"))
	if body["error"] != topic.ErrNoDocuments.Error() {
		t.Errorf("empty project = %v", body)
	}
}

func TestProcessReports_RealPipeline(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cfg.Topics = topic.NewPipeline(topic.PipelineConfig{Store: env.store, Iterations: 20, Logger: testLogger()})
	router := NewRouter(env.cfg)

	if _, err := env.store.CreateUser("p", "u"); err != nil {
		t.Fatal(err)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/process_reports?project_id=p", nil))
	if body := decodeJSONBody(t, rr); body["error"] != topic.ErrNoDocuments.Error() {
		t.Errorf("zero documents = %v", body)
	}
}

func TestJobsRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	if err := env.repo.Create(ctx, &jobs.Job{ID: "job-1", Type: jobs.TypeProcessReports, Project: "p"}); err != nil {
		t.Fatal(err)
	}

	rr := env.get(t, "/jobs?project_id=p")
	if rr.Code != http.StatusOK {
		t.Fatalf("/jobs status = %d", rr.Code)
	}
	var list JobsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil || len(list.Jobs) != 1 {
		t.Errorf("/jobs = %s, %v", rr.Body.String(), err)
	}

	if rr := env.get(t, "/jobs?limit=zero"); rr.Code != http.StatusBadRequest {
		t.Errorf("/jobs?limit=zero status = %d, want 400", rr.Code)
	}

	rr = env.get(t, "/jobs/job-1")
	if body := decodeJSONBody(t, rr); body["id"] != "job-1" || body["status"] != jobs.StatusPending {
		t.Errorf("/jobs/job-1 = %v", body)
	}
	if rr := env.get(t, "/jobs/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("/jobs/nope status = %d, want 404", rr.Code)
	}
}

func TestHealthAndStatus(t *testing.T) {
	loaded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, func(cfg *ServerConfig) {
		cfg.Model = fakeModelStatus{model: &caption.Model{LoadedAt: loaded}}
		cfg.ModelServer = healthFunc(func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("model server health check without a deadline")
			}
			return errors.New("connection refused")
		})
	})

	body := decodeJSONBody(t, env.get(t, "/health"))
	if body["status"] != "ok" || body["backend"] != "model" {
		t.Errorf("/health = %v", body)
	}

	if err := env.repo.Create(context.Background(), &jobs.Job{ID: "r", Type: jobs.TypeProcessVideo, Project: "p", Status: jobs.StatusRunning}); err != nil {
		t.Fatal(err)
	}
	body = decodeJSONBody(t, env.get(t, "/status"))
	if body["state"] != "busy" || body["jobs_running"] != float64(1) {
		t.Errorf("/status = %v", body)
	}
	if body["model_loaded"] != true || body["model_loaded_at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("/status model = %v", body)
	}
	if body["model_server"] != "connection refused" {
		t.Errorf("/status model_server = %v", body["model_server"])
	}
	if pools, _ := body["pools"].([]interface{}); len(pools) != 2 {
		t.Errorf("/status pools = %v", body["pools"])
	}
}

func TestAuthProtectsRoutes(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig) { cfg.APIToken = "s3cret-token" })

	if rr := env.get(t, "/projects"); rr.Code != http.StatusUnauthorized {
		t.Errorf("/projects without token status = %d, want 401", rr.Code)
	}
	if rr := env.get(t, "/health"); rr.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", rr.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer s3cret-token")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("/projects with token status = %d, want 200", rr.Code)
	}
}

func TestFileRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.store.CreateUser("p", "u"); err != nil {
		t.Fatal(err)
	}
	name, err := env.store.SaveUpload("p", "u", store.FileTypeVideo, "a.mp4", strings.NewReader("0123456789"))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/files/p/u/video/"+name, nil)
	req.Header.Set("Range", "bytes=-3")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusPartialContent || rr.Body.String() != "789" {
		t.Errorf("range response = %d %q", rr.Code, rr.Body.String())
	}

	if rr := env.get(t, "/files/p/u/video/missing.mp4"); rr.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", rr.Code)
	}
	if rr := env.get(t, "/files/p/u/audio/x"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad file type status = %d, want 400", rr.Code)
	}
}

func TestExportReport(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.store.CreateUser("p", "u"); err != nil {
		t.Fatal(err)
	}
	path, _ := env.store.ReportPath("p", "u", "clip.mp4")
	if err := os.WriteFile(path, []byte("0:00:00, a dog\n0:00:10, a cat\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rr := env.get(t, "/export_report?project_id=p&user_id=u&report_id=clip.mp4&format=vtt")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.HasPrefix(rr.Body.String(), "WEBVTT") {
		t.Errorf("export body = %q", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "00:00:10.000 --> 00:00:20.000") {
		t.Errorf("last cue should last one sampling interval: %q", rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "clip.vtt") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	if rr := env.get(t, "/export_report?project_id=p&user_id=u&report_id=clip.txt&format=edl"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad format status = %d, want 400", rr.Code)
	}
	if rr := env.get(t, "/export_report?project_id=p&user_id=u&report_id=none.txt"); rr.Code != http.StatusNotFound {
		t.Errorf("missing report status = %d, want 404", rr.Code)
	}
}

func TestWriteStoreError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrInvalidName, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		writeStoreError(rr, tt.err)
		if rr.Code != tt.want {
			t.Errorf("writeStoreError(%v) status = %d, want %d", tt.err, rr.Code, tt.want)
		}
	}
}
