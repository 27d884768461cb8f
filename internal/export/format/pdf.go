package format

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/shopspring/decimal"
)

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Date", 20},
	{"Invoice No.", 28},
	{"Party", 40},
	{"Tax ID", 26},
	{"Particulars", 50},
	{"Taxable", 18},
	{"Tax", 18},
	{"Total", 18},
	{"Source File", 33},
	{"VAT Credit", 12},
}

// BuildPDF renders records as a landscape summary report: one table row
// per record plus a totals line over the three amount columns.
func BuildPDF(records []domain.Record) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Invoice Records")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(110, 110, 110)
	pdf.Cell(0, 5, fmt.Sprintf("%d record(s), generated %s", len(records), time.Now().Format("2006-01-02 15:04")))
	pdf.Ln(8)
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "B", 7)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, 6, col.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 7)
	var taxable, tax, total decimal.Decimal
	for i := range records {
		r := &records[i]
		if r.TaxableAmount.Valid {
			taxable = taxable.Add(r.TaxableAmount.Decimal)
		}
		if r.TaxAmount.Valid {
			tax = tax.Add(r.TaxAmount.Decimal)
		}
		if r.TotalAmount.Valid {
			total = total.Add(r.TotalAmount.Decimal)
		}

		cells := recordCells(r)
		for j, col := range pdfColumns {
			align := "L"
			if j >= 5 && j <= 7 {
				align = "R"
			}
			pdf.CellFormat(col.width, 5, tr(truncate(cells[j], 42)), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	labelWidth := pdfColumns[0].width + pdfColumns[1].width + pdfColumns[2].width +
		pdfColumns[3].width + pdfColumns[4].width
	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(labelWidth, 6, "Totals", "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumns[5].width, 6, taxable.String(), "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumns[6].width, 6, tax.String(), "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumns[7].width, 6, total.String(), "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumns[8].width+pdfColumns[9].width, 6, "", "1", 0, "L", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf write: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "..."
}
