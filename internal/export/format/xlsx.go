package format

import (
	"fmt"

	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Records"

// BuildXLSX renders records as an XLSX workbook with the same column
// order as the CSV export. Amounts become numeric cells so spreadsheet
// sums work out of the box.
func BuildXLSX(records []domain.Record) ([]byte, error) {
	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(xlsxSheet); index == -1 {
		if _, err := f.NewSheet(xlsxSheet); err != nil {
			return nil, fmt.Errorf("xlsx sheet: %w", err)
		}
	}
	activeIndex, _ := f.GetSheetIndex(xlsxSheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(xlsxSheet, cell, h)
	}

	row := 2
	for _, r := range records {
		write := func(col int, v interface{}) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(xlsxSheet, cell, v)
		}

		write(1, r.Date)
		write(2, r.InvoiceNumber)
		write(3, r.PartyName)
		write(4, r.TaxIDNumber)
		write(5, r.Particulars)
		if r.TaxableAmount.Valid {
			write(6, r.TaxableAmount.Decimal.InexactFloat64())
		}
		if r.TaxAmount.Valid {
			write(7, r.TaxAmount.Decimal.InexactFloat64())
		}
		if r.TotalAmount.Valid {
			write(8, r.TotalAmount.Decimal.InexactFloat64())
		}
		write(9, r.SourceFile)
		write(10, boolCell(r.TaxCreditFlag))

		row++
	}

	_ = f.SetColWidth(xlsxSheet, "A", "A", 14) // date
	_ = f.SetColWidth(xlsxSheet, "B", "B", 18) // invoice number
	_ = f.SetColWidth(xlsxSheet, "C", "C", 28) // party
	_ = f.SetColWidth(xlsxSheet, "D", "D", 18) // tax id
	_ = f.SetColWidth(xlsxSheet, "E", "E", 40) // particulars
	_ = f.SetColWidth(xlsxSheet, "F", "H", 14) // amounts
	_ = f.SetColWidth(xlsxSheet, "I", "I", 30) // source file
	_ = f.SetColWidth(xlsxSheet, "J", "J", 14) // flag

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
