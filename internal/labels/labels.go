// Package labels renders printable barcode labels for item instances.
package labels

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/boombuler/barcode/code128"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Label geometry in pixels.
const (
	ModuleWidth   = 2
	BarHeight     = 60
	QuietZone     = 12
	captionHeight = 18
)

// ErrEmptyBarcode is returned when there is nothing to encode.
var ErrEmptyBarcode = errors.New("empty barcode")

// Render draws a Code 128 symbol for code with the code printed underneath.
func Render(code string) (image.Image, error) {
	if code == "" {
		return nil, ErrEmptyBarcode
	}
	bc, err := code128.Encode(code)
	if err != nil {
		return nil, fmt.Errorf("encoding barcode %q: %w", code, err)
	}

	modules := bc.Bounds().Dx()
	width := modules*ModuleWidth + 2*QuietZone
	height := QuietZone + BarHeight + captionHeight + QuietZone/2

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	// Nearest neighbour keeps the bar edges sharp.
	bars := image.Rect(QuietZone, QuietZone, QuietZone+modules*ModuleWidth, QuietZone+BarHeight)
	draw.NearestNeighbor.Scale(dst, bars, bc, bc.Bounds(), draw.Src, nil)

	d := &font.Drawer{Dst: dst, Src: image.Black, Face: basicfont.Face7x13}
	textWidth := d.MeasureString(code).Ceil()
	d.Dot = fixed.P((width-textWidth)/2, bars.Max.Y+captionHeight-4)
	d.DrawString(code)

	return dst, nil
}

// WritePNG renders a label and encodes it as PNG.
func WritePNG(w io.Writer, code string) error {
	img, err := Render(code)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding label: %w", err)
	}
	return nil
}

// PNG returns the PNG encoding of a label.
func PNG(code string) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, code); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
