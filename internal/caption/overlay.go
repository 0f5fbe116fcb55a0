package caption

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/heimdex/vidtopics/internal/store"
)

const (
	bandHeight = 20
	textMargin = 4
)

// FrameImageName names the saved still of frame index of a video.
func FrameImageName(video string, index int) string {
	base := strings.TrimSuffix(video, filepath.Ext(video))
	return fmt.Sprintf("%s_%05d.jpg", base, index)
}

// SaveCaptionedFrame writes img as a JPEG with the caption drawn on a dark band
// along the bottom edge.
func SaveCaptionedFrame(path string, img image.Image, caption string) error {
	b := img.Bounds()
	canvas := image.NewRGBA(b)
	draw.Draw(canvas, b, img, b.Min, draw.Src)

	band := image.Rect(b.Min.X, b.Max.Y-bandHeight, b.Max.X, b.Max.Y).Intersect(b)
	draw.Draw(canvas, band, image.NewUniform(color.RGBA{A: 170}), image.Point{}, draw.Over)

	face := basicfont.Face7x13
	maxChars := (b.Dx() - 2*textMargin) / face.Advance
	text := caption
	if maxChars <= 0 {
		text = ""
	} else if len([]rune(text)) > maxChars {
		text = string([]rune(text)[:maxChars])
	}

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(b.Min.X+textMargin, b.Max.Y-(bandHeight-face.Ascent)/2),
	}
	d.DrawString(text)

	return store.WriteFileAtomic(path, func(w io.Writer) error {
		return jpeg.Encode(w, canvas, &jpeg.Options{Quality: 90})
	})
}
