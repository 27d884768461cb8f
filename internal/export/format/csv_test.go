package format_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/ledgerscan/ledgerscan-backend/internal/export/format"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headerLine = "date,invoiceNumber,partyName,taxIdNumber,particulars,taxableAmount,taxAmount,totalAmount,sourceFileName,taxCreditFlag"

func amount(f float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(f), Valid: true}
}

func noAmount() decimal.NullDecimal {
	return decimal.NullDecimal{}
}

// goldenRecord holds the reference record the formatter contract is
// pinned to.
func goldenRecord() domain.Record {
	return domain.Record{
		ID:            "irrelevant",
		Date:          "2024-07-20",
		InvoiceNumber: "INV-1",
		PartyName:     "Ex, Inc.",
		TaxIDNumber:   "",
		Particulars:   `A "special" job`,
		TaxableAmount: amount(100),
		TaxAmount:     amount(13),
		TotalAmount:   amount(113),
		SourceFile:    "a.pdf",
		TaxCreditFlag: true,
	}
}

func TestBuildCSV_GoldenRecord(t *testing.T) {
	out := format.BuildCSV([]domain.Record{goldenRecord()})

	want := headerLine + "\r\n" +
		`2024-07-20,INV-1,"Ex, Inc.",,"A ""special"" job",100,13,113,a.pdf,TRUE` + "\r\n"
	assert.Equal(t, want, string(out))
}

func TestBuildCSV_EmptyInput(t *testing.T) {
	out := format.BuildCSV(nil)
	assert.Equal(t, headerLine+"\r\n", string(out))
}

func TestBuildCSV_NoBOM(t *testing.T) {
	out := format.BuildCSV(nil)
	assert.False(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}))
	assert.True(t, bytes.HasPrefix(out, []byte("date,")))
}

func TestBuildCSV_EveryLineCRLFTerminated(t *testing.T) {
	records := []domain.Record{goldenRecord(), goldenRecord(), goldenRecord()}
	out := string(format.BuildCSV(records))

	require.True(t, strings.HasSuffix(out, "\r\n"), "final line must be CRLF-terminated")
	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	assert.Len(t, lines, len(records)+1)
}

func TestBuildCSV_Idempotent(t *testing.T) {
	records := []domain.Record{goldenRecord(), {
		Date:          "2024-08-01",
		InvoiceNumber: "INV-2",
		PartyName:     "Plain GmbH",
		Particulars:   "N/A",
		TotalAmount:   amount(42.5),
		SourceFile:    "b.pdf",
	}}

	first := format.BuildCSV(records)
	second := format.BuildCSV(records)
	assert.True(t, bytes.Equal(first, second))
}

func TestBuildCSV_PreservesInputOrder(t *testing.T) {
	records := make([]domain.Record, 0, 5)
	for _, n := range []string{"INV-3", "INV-1", "INV-5", "INV-2", "INV-4"} {
		records = append(records, domain.Record{
			Date:          "2024-07-20",
			InvoiceNumber: n,
			PartyName:     "P",
			Particulars:   "N/A",
			TotalAmount:   amount(1),
			SourceFile:    "a.pdf",
		})
	}

	out := string(format.BuildCSV(records))
	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	require.Len(t, lines, 6)
	for i, want := range []string{"INV-3", "INV-1", "INV-5", "INV-2", "INV-4"} {
		assert.Equal(t, want, strings.Split(lines[i+1], ",")[1])
	}
}

func TestBuildCSV_QuotingRoundTrip(t *testing.T) {
	records := []domain.Record{
		{
			Date:          "2024-07-20",
			InvoiceNumber: "INV-1",
			PartyName:     "Comma, Co.",
			TaxIDNumber:   `quote"inside`,
			Particulars:   "line one\nline two",
			TaxableAmount: amount(10),
			TaxAmount:     amount(1.3),
			TotalAmount:   amount(11.3),
			SourceFile:    "weird,name.pdf",
			TaxCreditFlag: false,
		},
	}

	out := format.BuildCSV(records)

	r := csv.NewReader(bytes.NewReader(out))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, format.Header, rows[0])
	assert.Equal(t, "Comma, Co.", rows[1][2])
	assert.Equal(t, `quote"inside`, rows[1][3])
	assert.Equal(t, "line one\nline two", rows[1][4])
	assert.Equal(t, "weird,name.pdf", rows[1][8])
}

func TestBuildCSV_BooleanLaw(t *testing.T) {
	flagged := goldenRecord()
	unflagged := goldenRecord()
	unflagged.TaxCreditFlag = false

	out := string(format.BuildCSV([]domain.Record{flagged, unflagged}))
	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")

	assert.True(t, strings.HasSuffix(lines[1], ",TRUE"))
	assert.True(t, strings.HasSuffix(lines[2], ",FALSE"))
	assert.NotContains(t, out, "true")
	assert.NotContains(t, out, "false")
}

func TestBuildCSV_AbsentOptionalsAreEmptyCells(t *testing.T) {
	out := string(format.BuildCSV([]domain.Record{{
		Date:          "2024-07-20",
		InvoiceNumber: "INV-1",
		PartyName:     "P",
		TaxIDNumber:   "",
		Particulars:   "N/A",
		TaxableAmount: noAmount(),
		TaxAmount:     noAmount(),
		TotalAmount:   amount(99),
		SourceFile:    "",
		TaxCreditFlag: false,
	}}))

	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	assert.Equal(t, "2024-07-20,INV-1,P,,N/A,,,99,,FALSE", lines[1])
}

func TestBuildCSV_SpacesDoNotTriggerQuoting(t *testing.T) {
	out := string(format.BuildCSV([]domain.Record{{
		Date:          "2024-07-20",
		InvoiceNumber: " INV-1 ",
		PartyName:     "Spaced Name",
		Particulars:   " leading and trailing ",
		TotalAmount:   amount(5),
		SourceFile:    "a.pdf",
	}}))

	assert.Contains(t, out, ", INV-1 ,")
	assert.Contains(t, out, ", leading and trailing ,")
	assert.NotContains(t, out, `" INV-1 "`)
}

func TestBuildCSV_PlainDecimalAmounts(t *testing.T) {
	out := string(format.BuildCSV([]domain.Record{{
		Date:          "2024-07-20",
		InvoiceNumber: "INV-1",
		PartyName:     "P",
		Particulars:   "N/A",
		TaxableAmount: amount(1234.5),
		TaxAmount:     amount(160.485),
		TotalAmount:   amount(1394985),
		SourceFile:    "a.pdf",
	}}))

	assert.Contains(t, out, ",1234.5,")
	assert.Contains(t, out, ",160.485,")
	assert.Contains(t, out, ",1394985,")
	assert.NotContains(t, out, "1,234")
	assert.NotContains(t, out, "1234.50")
}
