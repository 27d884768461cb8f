package delivery_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ledgerscan/ledgerscan-backend/internal/export/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadStore_SingleUse(t *testing.T) {
	store := delivery.NewDownloadStore(time.Hour)

	token := store.Stage("report.csv", []byte("payload"), "text/csv;charset=utf-8")
	require.NotEmpty(t, token)

	d, ok := store.Take(token)
	require.True(t, ok)
	assert.Equal(t, "report.csv", d.Filename)
	assert.Equal(t, "payload", string(d.Content))
	assert.Equal(t, "text/csv;charset=utf-8", d.MimeType)

	_, ok = store.Take(token)
	assert.False(t, ok, "a token must work exactly once")
}

func TestDownloadStore_UnknownToken(t *testing.T) {
	store := delivery.NewDownloadStore(time.Hour)
	_, ok := store.Take("missing")
	assert.False(t, ok)
}

func TestDownloadStore_NilStoreTake(t *testing.T) {
	var store *delivery.DownloadStore
	_, ok := store.Take("anything")
	assert.False(t, ok, "a disabled store must miss, not panic")
}

func TestDownloadStore_TokensDiffer(t *testing.T) {
	store := delivery.NewDownloadStore(time.Hour)
	a := store.Stage("a.csv", []byte("a"), "text/csv;charset=utf-8")
	b := store.Stage("b.csv", []byte("b"), "text/csv;charset=utf-8")
	assert.NotEqual(t, a, b)
}

func TestDownloadStore_ExpiresEntries(t *testing.T) {
	store := delivery.NewDownloadStore(50 * time.Millisecond)

	token := store.Stage("report.csv", []byte("payload"), "text/csv;charset=utf-8")

	time.Sleep(200 * time.Millisecond)
	_, ok := store.Take(token)
	assert.False(t, ok, "entry should be swept after its TTL")
}

func TestDownloadSaver_StagesContent(t *testing.T) {
	store := delivery.NewDownloadStore(time.Hour)
	saver := delivery.NewDownloadSaver(store)

	require.True(t, saver.Available())
	assert.Equal(t, "download", saver.Name())

	outcome, err := saver.AttemptSave(context.Background(), delivery.SaveRequest{
		Filename: "report.csv",
		Content:  []byte("payload"),
		MimeType: "text/csv;charset=utf-8",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(outcome.Path, "/api/v1/exports/downloads/"))

	token := strings.TrimPrefix(outcome.Path, "/api/v1/exports/downloads/")
	d, ok := store.Take(token)
	require.True(t, ok)
	assert.Equal(t, "payload", string(d.Content))
}

func TestDownloadSaver_DisabledWithoutStore(t *testing.T) {
	saver := delivery.NewDownloadSaver(nil)
	assert.False(t, saver.Available())
}
