package api

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/heimdex/vidtopics/internal/store"
)

//go:embed templates/upload.html.tmpl
var templatesFS embed.FS

var uploadForm = template.Must(template.ParseFS(templatesFS, "templates/upload.html.tmpl"))

// queryArgs returns the named query arguments in order. The first missing
// one is reported as a legacy error.
func queryArgs(w http.ResponseWriter, r *http.Request, names ...string) ([]string, bool) {
	q := r.URL.Query()
	out := make([]string, len(names))
	for i, name := range names {
		v := q.Get(name)
		if v == "" {
			writeLegacyError(w, fmt.Errorf("missing argument %s", name))
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Store.ListProjects()
		if err != nil {
			writeLegacyError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectsResponse{Projects: nonNil(projects)})
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, ok := queryArgs(w, r, "project_id")
		if !ok {
			return
		}
		created, err := cfg.Store.CreateProject(args[0])
		if err != nil {
			writeLegacyError(w, err)
			return
		}
		msg := "Project already exists"
		if created {
			msg = "Project created"
		}
		WriteJSON(w, http.StatusOK, MessageResponse{Response: msg})
	}
}

func listUsersHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, ok := queryArgs(w, r, "project_id")
		if !ok {
			return
		}
		users, err := cfg.Store.ListUsers(args[0])
		if err != nil {
			writeLegacyError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, UsersResponse{Users: nonNil(users)})
	}
}

func createUserHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, ok := queryArgs(w, r, "project_id", "user_id")
		if !ok {
			return
		}
		created, err := cfg.Store.CreateUser(args[0], args[1])
		if err != nil {
			writeLegacyError(w, err)
			return
		}
		msg := "User already exists"
		if created {
			msg = "User created"
		}
		WriteJSON(w, http.StatusOK, MessageResponse{Response: msg})
	}
}

func availableFilesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, ok := queryArgs(w, r, "project_id", "user_id", "file_type")
		if !ok {
			return
		}
		ft, err := store.ParseFileType(args[2])
		if err != nil {
			writeLegacyError(w, err)
			return
		}
		files, err := cfg.Store.ListFiles(args[0], args[1], ft)
		if err != nil {
			writeLegacyError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string][]string{args[2]: nonNil(files)})
	}
}

func uploadFormHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, _ := cfg.Store.ListProjects()
		data := struct {
			Projects  []string
			FileTypes []store.FileType
		}{projects, []store.FileType{store.FileTypeVideo, store.FileTypeImage, store.FileTypeReport}}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := uploadForm.Execute(w, data); err != nil {
			cfg.Logger.Error("failed to render upload form", "error", err)
		}
	}
}

// uploadHandler streams the multipart "file" part straight into the store.
// project_id, user_id and file_type come from the query string or, for the
// HTML form, from text fields sent before the file.
func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		}
		mr, err := r.MultipartReader()
		if err != nil {
			writeLegacyError(w, fmt.Errorf("expected a multipart upload: %w", err))
			return
		}

		q := r.URL.Query()
		fields := map[string]string{
			"project_id": q.Get("project_id"),
			"user_id":    q.Get("user_id"),
			"file_type":  q.Get("file_type"),
		}

		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				writeLegacyError(w, errors.New("missing file"))
				return
			}
			if err != nil {
				writeLegacyError(w, uploadError(err))
				return
			}

			name := part.FormName()
			if name != "file" {
				if cur, known := fields[name]; known && cur == "" {
					b, _ := io.ReadAll(io.LimitReader(part, 1024))
					fields[name] = string(b)
				}
				part.Close()
				continue
			}

			for _, k := range []string{"project_id", "user_id", "file_type"} {
				if fields[k] == "" {
					writeLegacyError(w, fmt.Errorf("missing argument %s", k))
					return
				}
			}
			ft, err := store.ParseFileType(fields["file_type"])
			if err != nil {
				writeLegacyError(w, err)
				return
			}

			original := part.FileName()
			stored, err := cfg.Store.SaveUpload(fields["project_id"], fields["user_id"], ft, original, part)
			part.Close()
			if err != nil {
				writeLegacyError(w, uploadError(err))
				return
			}
			WriteJSON(w, http.StatusOK, StatusMessage{
				Status: fmt.Sprintf("%s has been uploaded!", original),
				File:   stored,
			})
			return
		}
	}
}

func uploadError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fmt.Errorf("upload exceeds %d bytes", tooBig.Limit)
	}
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
