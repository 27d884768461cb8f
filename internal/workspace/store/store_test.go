package store_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/ledgerscan/ledgerscan-backend/internal/workspace/store"
	"github.com/ledgerscan/ledgerscan-backend/pkg/errors"
	"github.com/ledgerscan/ledgerscan-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(id, invoiceNumber string) domain.Record {
	return domain.Record{
		ID:            id,
		Date:          "2024-07-20",
		InvoiceNumber: invoiceNumber,
		PartyName:     "Ex, Inc.",
		Particulars:   "Consulting",
		TaxableAmount: decimal.NullDecimal{Decimal: decimal.NewFromInt(100), Valid: true},
		TaxAmount:     decimal.NullDecimal{Decimal: decimal.NewFromInt(13), Valid: true},
		TotalAmount:   decimal.NullDecimal{Decimal: decimal.NewFromInt(113), Valid: true},
		SourceFile:    "a.pdf",
	}
}

func TestRecordStore_CreateAndGet(t *testing.T) {
	s := store.NewRecordStore(time.Hour, 100)

	ws := s.CreateWorkspace()
	require.NotEmpty(t, ws.ID)
	assert.Equal(t, 0, ws.RecordCount)

	got, err := s.Get(ws.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, got.ID)
	assert.True(t, got.ExpiresAt.After(got.CreatedAt))
}

func TestRecordStore_GetUnknownWorkspace(t *testing.T) {
	s := store.NewRecordStore(time.Hour, 100)

	_, err := s.Get("missing")
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "WORKSPACE_NOT_FOUND", appErr.Code)
}

func TestRecordStore_AppendPreservesOrder(t *testing.T) {
	s := store.NewRecordStore(time.Hour, 100)
	ws := s.CreateWorkspace()

	require.NoError(t, s.AppendRecords(ws.ID, []domain.Record{
		testRecord("r1", "INV-1"),
		testRecord("r2", "INV-2"),
	}))
	require.NoError(t, s.AppendRecords(ws.ID, []domain.Record{
		testRecord("r3", "INV-3"),
	}))

	records, err := s.ListRecords(ws.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "INV-1", records[0].InvoiceNumber)
	assert.Equal(t, "INV-2", records[1].InvoiceNumber)
	assert.Equal(t, "INV-3", records[2].InvoiceNumber)

	got, err := s.Get(ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RecordCount)
}

func TestRecordStore_AppendRespectsLimit(t *testing.T) {
	s := store.NewRecordStore(time.Hour, 2)
	ws := s.CreateWorkspace()

	require.NoError(t, s.AppendRecords(ws.ID, []domain.Record{
		testRecord("r1", "INV-1"),
		testRecord("r2", "INV-2"),
	}))

	err := s.AppendRecords(ws.ID, []domain.Record{testRecord("r3", "INV-3")})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)

	// The failed append must not partially apply.
	records, err := s.ListRecords(ws.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRecordStore_ListReturnsCopy(t *testing.T) {
	s := store.NewRecordStore(time.Hour, 100)
	ws := s.CreateWorkspace()

	require.NoError(t, s.AppendRecords(ws.ID, []domain.Record{testRecord("r1", "INV-1")}))

	records, err := s.ListRecords(ws.ID)
	require.NoError(t, err)
	records[0].InvoiceNumber = "mutated"

	again, err := s.ListRecords(ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", again[0].InvoiceNumber)
}

func TestRecordStore_UpdateTaxCreditFlag(t *testing.T) {
	s := store.NewRecordStore(time.Hour, 100)
	ws := s.CreateWorkspace()

	require.NoError(t, s.AppendRecords(ws.ID, []domain.Record{
		testRecord("r1", "INV-1"),
		testRecord("r2", "INV-2"),
	}))

	updated, err := s.UpdateTaxCreditFlag(ws.ID, "r2", true)
	require.NoError(t, err)
	assert.Equal(t, "r2", updated.ID)
	assert.True(t, updated.TaxCreditFlag)

	records, err := s.ListRecords(ws.ID)
	require.NoError(t, err)
	assert.False(t, records[0].TaxCreditFlag)
	assert.True(t, records[1].TaxCreditFlag)

	// Flip it back off.
	updated, err = s.UpdateTaxCreditFlag(ws.ID, "r2", false)
	require.NoError(t, err)
	assert.False(t, updated.TaxCreditFlag)
}

func TestRecordStore_UpdateUnknownRecord(t *testing.T) {
	s := store.NewRecordStore(time.Hour, 100)
	ws := s.CreateWorkspace()

	_, err := s.UpdateTaxCreditFlag(ws.ID, "missing", true)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestRecordStore_DeleteRecordKeepsOrder(t *testing.T) {
	s := store.NewRecordStore(time.Hour, 100)
	ws := s.CreateWorkspace()

	require.NoError(t, s.AppendRecords(ws.ID, []domain.Record{
		testRecord("r1", "INV-1"),
		testRecord("r2", "INV-2"),
		testRecord("r3", "INV-3"),
	}))

	require.NoError(t, s.DeleteRecord(ws.ID, "r2"))

	records, err := s.ListRecords(ws.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "INV-1", records[0].InvoiceNumber)
	assert.Equal(t, "INV-3", records[1].InvoiceNumber)

	err = s.DeleteRecord(ws.ID, "r2")
	require.Error(t, err)
}

func TestRecordStore_DeleteWorkspace(t *testing.T) {
	s := store.NewRecordStore(time.Hour, 100)
	ws := s.CreateWorkspace()

	require.NoError(t, s.DeleteWorkspace(ws.ID))

	_, err := s.Get(ws.ID)
	require.Error(t, err)

	err = s.DeleteWorkspace(ws.ID)
	require.Error(t, err)
}

func TestRecordStore_ExpiresIdleWorkspaces(t *testing.T) {
	s := store.NewRecordStore(50*time.Millisecond, 100)
	ws := s.CreateWorkspace()

	_, err := s.Get(ws.ID)
	require.NoError(t, err)

	testutil.RequireEventually(t, func() bool {
		_, err := s.Get(ws.ID)
		return err != nil
	}, 2*time.Second, 20*time.Millisecond, "workspace should expire after its TTL")
}

func TestRecordStore_MutationExtendsTTL(t *testing.T) {
	s := store.NewRecordStore(150*time.Millisecond, 100)
	ws := s.CreateWorkspace()

	// Keep touching the workspace past the original deadline.
	for i := 0; i < 4; i++ {
		time.Sleep(60 * time.Millisecond)
		err := s.AppendRecords(ws.ID, []domain.Record{
			testRecord(fmt.Sprintf("r%d", i), fmt.Sprintf("INV-%d", i)),
		})
		require.NoError(t, err)
	}

	_, err := s.Get(ws.ID)
	require.NoError(t, err)
}
