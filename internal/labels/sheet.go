package labels

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf/v2"
)

// Label is one entry on a label sheet.
type Label struct {
	Barcode string
	Caption string
}

// Sheet layout in millimetres on A4 portrait.
const (
	sheetColumns = 3
	sheetMargin  = 10.0
	cellWidth    = 63.0
	cellHeight   = 34.0
	imageHeight  = 22.0
)

// WriteSheet renders labels onto A4 pages, three per row, under a title.
func WriteSheet(w io.Writer, title string, labels []Label) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(sheetMargin, sheetMargin, sheetMargin)
	pdf.SetAutoPageBreak(false, sheetMargin)
	pdf.SetTitle(title, true)

	_, pageHeight := pdf.GetPageSize()
	rowsPerPage := int((pageHeight - 2*sheetMargin - 10) / cellHeight)

	newPage := func() {
		pdf.AddPage()
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(190, 8, title, "", 1, "C", false, 0, "")
	}
	newPage()

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	for i, l := range labels {
		slot := i % (sheetColumns * rowsPerPage)
		if i > 0 && slot == 0 {
			newPage()
		}
		x := sheetMargin + float64(slot%sheetColumns)*cellWidth
		y := sheetMargin + 10 + float64(slot/sheetColumns)*cellHeight

		data, err := PNG(l.Barcode)
		if err != nil {
			return err
		}
		pdf.RegisterImageOptionsReader(l.Barcode, opt, bytes.NewReader(data))
		pdf.ImageOptions(l.Barcode, x+2, y+1, cellWidth-4, imageHeight, false, opt, 0, "")

		pdf.SetFont("Arial", "", 8)
		pdf.SetXY(x, y+imageHeight+2)
		pdf.CellFormat(cellWidth, 5, l.Caption, "", 0, "C", false, 0, "")
		pdf.Rect(x, y, cellWidth, cellHeight-2, "D")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("building label sheet: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing label sheet: %w", err)
	}
	return nil
}
