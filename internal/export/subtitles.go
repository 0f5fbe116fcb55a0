package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/heimdex/vidtopics/internal/report"
)

// Cues converts report records into cues. A cue lasts until the next record
// starts; the last one, and any whose successor does not start later, lasts
// one sampling interval.
func Cues(records []report.Record, interval time.Duration) []Cue {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	cues := make([]Cue, 0, len(records))
	for i, r := range records {
		end := r.Timestamp + interval
		if i+1 < len(records) && records[i+1].Timestamp > r.Timestamp {
			end = records[i+1].Timestamp
		}
		cues = append(cues, Cue{Index: i + 1, Start: r.Timestamp, End: end, Text: cueText(r.Caption)})
	}
	return cues
}

// Render encodes the cues in the given format.
func Render(f Format, title string, cues []Cue) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch f {
	case FormatSRT:
		err = WriteSRT(&buf, cues)
	case FormatVTT:
		err = WriteVTT(&buf, title, cues)
	case FormatJSON:
		err = WriteJSON(&buf, title, cues)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// emptyCue stands in for a blank caption. A blank payload line would end the
// cue block early in SRT and VTT players.
const emptyCue = "…"

func cueBody(text string) string {
	if text == "" {
		return emptyCue
	}
	return text
}

func WriteSRT(w io.Writer, cues []Cue) error {
	for _, c := range cues {
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			c.Index, timecode(c.Start, ','), timecode(c.End, ','), cueBody(c.Text))
		if err != nil {
			return err
		}
	}
	return nil
}

func WriteVTT(w io.Writer, title string, cues []Cue) error {
	header := "WEBVTT"
	if title != "" {
		header += " - " + cueText(title)
	}
	if _, err := fmt.Fprintf(w, "%s\n\n", header); err != nil {
		return err
	}
	for _, c := range cues {
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			c.Index, timecode(c.Start, '.'), timecode(c.End, '.'), cueBody(c.Text))
		if err != nil {
			return err
		}
	}
	return nil
}

func WriteJSON(w io.Writer, title string, cues []Cue) error {
	track := jsonTrack{Title: title, Cues: make([]jsonCue, len(cues))}
	for i, c := range cues {
		track.Cues[i] = jsonCue{
			Cue:     c,
			StartMs: c.Start.Milliseconds(),
			EndMs:   c.End.Milliseconds(),
			StartTC: timecode(c.Start, '.'),
			EndTC:   timecode(c.End, '.'),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(track)
}

// timecode formats d as HH:MM:SS<sep>mmm.
func timecode(d time.Duration, sep byte) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms%1000)
}
