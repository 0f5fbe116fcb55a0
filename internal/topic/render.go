package topic

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var pageTemplate = template.Must(template.New("topics.html.tmpl").Funcs(template.FuncMap{
	"pct":  func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"prob": func(f float64) string { return fmt.Sprintf("%.3f", f) },
	"num":  func(f float64) string { return fmt.Sprintf("%.1f", f) },
	"div2": func(f float64) float64 { return f / 2 },
	"inc":  func(i int) int { return i + 1 },
}).ParseFS(templatesFS, "templates/topics.html.tmpl"))

const (
	mapSize    = 420.0
	mapPadding = 50.0
	maxRadius  = 45.0
	minRadius  = 6.0
	barWidth   = 300.0
)

type circle struct {
	ID     int
	CX, CY float64
	R      float64
	Share  float64
}

type bar struct {
	Term             string
	Y                float64
	OverallW, TopicW float64
	Overall, Topic   float64
	Weight           float64
	Relevance        float64
}

type topicPanel struct {
	ID     int
	Share  float64
	Height float64
	Bars   []bar
}

type page struct {
	*Visualization
	Data    *Visualization
	MapSize float64
	Circles []circle
	Panels  []topicPanel
	Overall topicPanel
}

// Render produces a self-contained HTML document: inline CSS, inline SVG and a
// few lines of inline script, no external assets.
func Render(v *Visualization) (string, error) {
	p := page{Visualization: v, Data: v, MapSize: mapSize}
	p.Circles = layoutCircles(v.Topics)

	for _, t := range v.Topics {
		p.Panels = append(p.Panels, layoutBars(t.ID, t.Share, t.Terms))
	}
	p.Overall = layoutBars(0, 100, v.OverallTerms)

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render topic page: %w", err)
	}
	return buf.String(), nil
}

func layoutCircles(topics []TopicView) []circle {
	minX, maxX, minY, maxY := math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)
	for _, t := range topics {
		minX, maxX = math.Min(minX, t.X), math.Max(maxX, t.X)
		minY, maxY = math.Min(minY, t.Y), math.Max(maxY, t.Y)
	}
	span := math.Max(maxX-minX, maxY-minY)

	inner := mapSize - 2*mapPadding
	out := make([]circle, 0, len(topics))
	for _, t := range topics {
		cx, cy := mapSize/2, mapSize/2
		if span > 0 {
			cx = mapPadding + (t.X-minX)/span*inner
			cy = mapPadding + (t.Y-minY)/span*inner
		}
		r := math.Max(minRadius, maxRadius*math.Sqrt(t.Share/100))
		out = append(out, circle{ID: t.ID, CX: cx, CY: cy, R: r, Share: t.Share})
	}
	return out
}

func layoutBars(id int, share float64, terms []TermScore) topicPanel {
	const rowHeight = 16.0
	maxOverall := 0.0
	for _, s := range terms {
		maxOverall = math.Max(maxOverall, s.Overall)
	}

	panel := topicPanel{ID: id, Share: share, Height: rowHeight*float64(len(terms)) + 4}
	for i, s := range terms {
		b := bar{
			Term:      s.Term,
			Y:         float64(i) * rowHeight,
			Overall:   s.Overall,
			Topic:     s.Frequency,
			Weight:    s.Weight,
			Relevance: s.Relevance,
		}
		if maxOverall > 0 {
			b.OverallW = barWidth * s.Overall / maxOverall
			b.TopicW = math.Min(b.OverallW, barWidth*s.Frequency/maxOverall)
		}
		panel.Bars = append(panel.Bars, b)
	}
	return panel
}
