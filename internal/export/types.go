// Package export turns caption reports into subtitle tracks.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownFormat = errors.New("unknown export format")

type Format string

const (
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
	FormatJSON Format = "json"
)

// ParseFormat accepts a format name case-insensitively; empty means SRT.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatSRT, nil
	case FormatSRT, FormatVTT, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (want srt, vtt or json)", ErrUnknownFormat, s)
}

// Ext returns the file extension, dot included.
func (f Format) Ext() string {
	return "." + string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatVTT:
		return "text/vtt; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "application/x-subrip"
	}
}

// Cue is one caption shown from Start until End.
type Cue struct {
	Index int           `json:"index"`
	Start time.Duration `json:"-"`
	End   time.Duration `json:"-"`
	Text  string        `json:"text"`
}

type jsonCue struct {
	Cue
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	StartTC string `json:"start"`
	EndTC   string `json:"end"`
}

type jsonTrack struct {
	Title string    `json:"title"`
	Cues  []jsonCue `json:"cues"`
}
