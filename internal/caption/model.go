package caption

import (
	"context"
	"image"

	"golang.org/x/image/draw"
)

// InputSize is the square edge, in pixels, the encoder expects.
const InputSize = 224

// ImageNet channel statistics used to normalise encoder input.
var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// Encoder turns a preprocessed image into a feature vector.
type Encoder interface {
	Encode(ctx context.Context, input Tensor) ([]float32, error)
}

// Decoder samples token ids from a feature vector, at most maxLen of them.
type Decoder interface {
	Sample(ctx context.Context, feature []float32, maxLen int) ([]int, error)
}

// Preprocess resizes img to InputSize x InputSize and normalises it into a
// 3 x H x W tensor.
func Preprocess(img image.Image) Tensor {
	dst := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := InputSize * InputSize
	data := make([]float32, 3*plane)
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			off := dst.PixOffset(x, y)
			i := y*InputSize + x
			for c := 0; c < 3; c++ {
				v := float32(dst.Pix[off+c]) / 255
				data[c*plane+i] = (v - channelMean[c]) / channelStd[c]
			}
		}
	}
	return Tensor{Shape: []int{3, InputSize, InputSize}, Data: data}
}
