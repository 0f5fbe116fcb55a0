package export

import (
	"path/filepath"
	"strings"
	"unicode"
)

// cueText folds a caption onto one line. Control characters are dropped and
// the cue arrow is broken up so it cannot end the text early.
func cueText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	return strings.ReplaceAll(out, "-->", "->")
}

// FileName returns the download name of an exported report: the report's
// base name with the format's extension, limited to a safe character set.
func FileName(reportName string, f Format) string {
	base := strings.TrimSuffix(filepath.Base(reportName), filepath.Ext(reportName))
	var b strings.Builder
	for _, r := range base {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_.", r) {
			b.WriteRune(r)
		} else if !unicode.IsControl(r) {
			b.WriteRune('_')
		}
	}
	name := b.String()
	if len([]rune(name)) > 100 {
		name = string([]rune(name)[:100])
	}
	if name == "" || strings.Trim(name, ".") == "" {
		name = "report"
	}
	return name + f.Ext()
}
