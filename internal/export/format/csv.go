// Package format renders workspace records into the exported file
// formats. BuildCSV is the contract the delivery chain and the insight
// prompts depend on; XLSX and PDF are report renditions of the same rows.
package format

import (
	"strings"

	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/shopspring/decimal"
)

// Header is the fixed column order of every export, in every format
var Header = []string{
	"date",
	"invoiceNumber",
	"partyName",
	"taxIdNumber",
	"particulars",
	"taxableAmount",
	"taxAmount",
	"totalAmount",
	"sourceFileName",
	"taxCreditFlag",
}

// BuildCSV renders records as CSV: the header line first, then one row
// per record in input order, every line CRLF-terminated including the
// last. No BOM. Output is deterministic for identical input.
//
// The writer is hand-rolled because the quoting rule is strict: a cell is
// quoted iff it contains a comma, double quote, CR or LF. encoding/csv
// also quotes leading spaces and bare backslashes, which would change the
// bytes; it is used only for reading in tests.
func BuildCSV(records []domain.Record) []byte {
	var b strings.Builder
	writeRow(&b, Header)
	for i := range records {
		writeRow(&b, recordCells(&records[i]))
	}
	return []byte(b.String())
}

func recordCells(r *domain.Record) []string {
	return []string{
		r.Date,
		r.InvoiceNumber,
		r.PartyName,
		r.TaxIDNumber,
		r.Particulars,
		decimalCell(r.TaxableAmount),
		decimalCell(r.TaxAmount),
		decimalCell(r.TotalAmount),
		r.SourceFile,
		boolCell(r.TaxCreditFlag),
	}
}

func writeRow(b *strings.Builder, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeCell(cell))
	}
	b.WriteString("\r\n")
}

// escapeCell wraps a cell in double quotes, doubling inner quotes, only
// when the content requires it.
func escapeCell(cell string) string {
	if !strings.ContainsAny(cell, ",\"\r\n") {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

// decimalCell renders an amount in plain decimal notation, no grouping
// and no padded precision. A missing amount is an empty cell.
func decimalCell(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// boolCell renders the tax credit flag; an unset flag is FALSE, never
// an empty cell.
func boolCell(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
