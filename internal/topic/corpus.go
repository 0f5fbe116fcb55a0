package topic

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/vidtopics/internal/report"
)

const maxConcurrentReads = 4

// Document is one report reduced to its filtered caption words.
type Document struct {
	Name   string // report path relative to the project
	User   string
	Tokens []string
}

// Text joins the tokens with spaces.
func (d Document) Text() string {
	return strings.Join(d.Tokens, " ")
}

// Tokenize lowercases a caption and cuts it into runs of letters, the same
// rule the LDA vectoriser applies, so "t-shirt" yields "shirt" here rather
// than being split again after filtering. Stop words and single-letter
// fragments are dropped.
func Tokenize(caption string, stop StopWords) []string {
	var out []string
	words := strings.FieldsFunc(strings.ToLower(caption), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 || stop.Contains(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// CollectDocuments reads every report under projectDir, one document per
// report, ordered by path. Reports with no words left after filtering are
// skipped.
func CollectDocuments(ctx context.Context, projectDir string, stop StopWords) ([]Document, error) {
	var paths []string
	err := filepath.WalkDir(projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != projectDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !strings.HasSuffix(d.Name(), ".txt") {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != "reports" {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	docs := make([]Document, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := report.Read(path)
			if err != nil {
				return err
			}

			rel, _ := filepath.Rel(projectDir, path)
			doc := Document{Name: filepath.ToSlash(rel)}
			if parts := strings.Split(doc.Name, "/"); len(parts) >= 3 {
				doc.User = parts[len(parts)-3]
			}
			for _, r := range records {
				doc.Tokens = append(doc.Tokens, Tokenize(r.Caption, stop)...)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := docs[:0]
	for _, d := range docs {
		if len(d.Tokens) > 0 {
			out = append(out, d)
		}
	}
	return out, nil
}
