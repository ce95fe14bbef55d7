package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

// ModelInputSize: сторона квадрата, на котором обучена модель.
const ModelInputSize = 224

// Decode сначала пробует общий декодер, затем явно jpeg/png по сигнатуре.
func Decode(b []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err == nil {
		return img, nil
	}
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return jpeg.Decode(bytes.NewReader(b))
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return png.Decode(bytes.NewReader(b))
	}
	return nil, fmt.Errorf("decode frame: %w", err)
}

// CenterSquare вырезает центральный квадрат, как делает веб-камера в браузере при flip/crop.
func CenterSquare(src image.Image) image.Image {
	b := src.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	rect := image.Rect(x0, y0, x0+side, y0+side)

	if s, ok := src.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return s.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			dst.Set(x, y, src.At(x0+x, y0+y))
		}
	}
	return dst
}

// Resize: nearest neighbour, без внешних зависимостей.
func Resize(src image.Image, newW, newH int) *image.RGBA {
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	sb := src.Bounds()
	srcW := sb.Dx()
	srcH := sb.Dy()
	for y := 0; y < newH; y++ {
		sy := sb.Min.Y + (y*srcH)/newH
		for x := 0; x < newW; x++ {
			sx := sb.Min.X + (x*srcW)/newW
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

// Normalize приводит произвольный снимок к квадрату ModelInputSize в JPEG.
func Normalize(b []byte) ([]byte, int, int, error) {
	img, err := Decode(b)
	if err != nil {
		return nil, 0, 0, err
	}
	out := Resize(CenterSquare(img), ModelInputSize, ModelInputSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90}); err != nil {
		return nil, 0, 0, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), ModelInputSize, ModelInputSize, nil
}
