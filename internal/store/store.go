// Package store is the filesystem project store. Every project is a directory
// under the root and every user a directory inside its project holding the
// videos, images and reports collections:
//
//	<root>/<project>/<user>/{videos,images,reports}/
package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidFileType = errors.New("invalid file type")
)

// FileType names a per-user collection. The folder is the plural form.
type FileType string

const (
	FileTypeVideo  FileType = "video"
	FileTypeImage  FileType = "image"
	FileTypeReport FileType = "report"
)

// FileTypes lists the per-user collections in creation order.
var FileTypes = []FileType{FileTypeReport, FileTypeVideo, FileTypeImage}

// ParseFileType accepts the singular name ("video") and, leniently, the folder name ("videos").
func ParseFileType(s string) (FileType, error) {
	ft := FileType(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	switch ft {
	case FileTypeVideo, FileTypeImage, FileTypeReport:
		return ft, nil
	}
	return "", fmt.Errorf("%w: %q (want video, image or report)", ErrInvalidFileType, s)
}

// Dir returns the folder name of the collection.
func (t FileType) Dir() string {
	return string(t) + "s"
}

// Store manages the on-disk project layout.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates the root directory if needed.
func New(root string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create projects dir: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

func (s *Store) Root() string {
	return s.root
}

// ListProjects returns the project directory names, sorted.
func (s *Store) ListProjects() ([]string, error) {
	return listDirs(s.root)
}

// CreateProject creates the project directory. created is false when it already existed.
func (s *Store) CreateProject(project string) (created bool, err error) {
	if err := ValidateName(project); err != nil {
		return false, err
	}
	dir := filepath.Join(s.root, project)
	if isDir(dir) {
		return false, nil
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create project: %w", err)
	}
	s.logger.Info("project created", "project", project)
	return true, nil
}

// ListUsers returns the user directory names of a project, sorted.
func (s *Store) ListUsers(project string) ([]string, error) {
	dir, err := s.ProjectDir(project)
	if err != nil {
		return nil, err
	}
	if !isDir(dir) {
		return nil, fmt.Errorf("project %q: %w", project, ErrNotFound)
	}
	return listDirs(dir)
}

// CreateUser creates the user directory with its reports, videos and images
// collections. A missing project is created on the way.
func (s *Store) CreateUser(project, user string) (created bool, err error) {
	dir, err := s.UserDir(project, user)
	if err != nil {
		return false, err
	}
	if isDir(dir) {
		return false, nil
	}
	for _, ft := range FileTypes {
		if err := os.MkdirAll(filepath.Join(dir, ft.Dir()), 0755); err != nil {
			return false, fmt.Errorf("failed to create user: %w", err)
		}
	}
	s.logger.Info("user created", "project", project, "user", user)
	return true, nil
}

// ListFiles returns the stored file names of one collection, sorted.
// In-flight uploads and other dot files are not listed.
func (s *Store) ListFiles(project, user string, ft FileType) ([]string, error) {
	dir, err := s.CollectionDir(project, user, ft)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s/%s: %w", project, user, ft.Dir(), ErrNotFound)
		}
		return nil, err
	}

	files := []string{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// SaveUpload writes r into the collection under a fresh UUID name that keeps
// the original extension, and returns the stored name. The original file name
// is never used on disk.
func (s *Store) SaveUpload(project, user string, ft FileType, originalName string, r io.Reader) (string, error) {
	dir, err := s.CollectionDir(project, user, ft)
	if err != nil {
		return "", err
	}
	if !isDir(dir) {
		return "", fmt.Errorf("%s/%s/%s: %w", project, user, ft.Dir(), ErrNotFound)
	}

	ext := filepath.Ext(filepath.Base(originalName))
	if strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	name := uuid.NewString() + ext
	path := filepath.Join(dir, name)

	err = WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}

	s.logger.Info("upload stored",
		"project", project,
		"user", user,
		"file_type", string(ft),
		"original", originalName,
		"stored", name,
	)
	return name, nil
}

// ProjectDir returns the directory of a validated project name.
func (s *Store) ProjectDir(project string) (string, error) {
	if err := ValidateName(project); err != nil {
		return "", err
	}
	return filepath.Join(s.root, project), nil
}

// UserDir returns the directory of a validated project/user pair.
func (s *Store) UserDir(project, user string) (string, error) {
	dir, err := s.ProjectDir(project)
	if err != nil {
		return "", err
	}
	if err := ValidateName(user); err != nil {
		return "", err
	}
	return filepath.Join(dir, user), nil
}

// CollectionDir returns the folder of one per-user collection.
func (s *Store) CollectionDir(project, user string, ft FileType) (string, error) {
	dir, err := s.UserDir(project, user)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ft.Dir()), nil
}

// FilePath resolves a stored file and checks it exists.
func (s *Store) FilePath(project, user string, ft FileType, name string) (string, error) {
	dir, err := s.CollectionDir(project, user, ft)
	if err != nil {
		return "", err
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %q: %w", ft, name, ErrNotFound)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s %q: %w", ft, name, ErrNotFound)
	}
	return path, nil
}

// ReportPath returns where the report of a video is written: the video's base
// name with a .txt extension, in the user's reports collection.
func (s *Store) ReportPath(project, user, video string) (string, error) {
	dir, err := s.CollectionDir(project, user, FileTypeReport)
	if err != nil {
		return "", err
	}
	if err := ValidateName(video); err != nil {
		return "", err
	}
	return filepath.Join(dir, ReportName(video)), nil
}

// ReportName maps a video file name to its report file name.
func ReportName(video string) string {
	return strings.TrimSuffix(video, filepath.Ext(video)) + ".txt"
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
