package extractor_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/extractor"
	"github.com/ledgerscan/ledgerscan-backend/internal/llm"
)

type stubResult struct {
	out []byte
	err error
}

// stubClient plays back canned provider responses in order, repeating the
// last one once exhausted.
type stubClient struct {
	name    string
	mimes   map[string]bool
	results []stubResult
	calls   int
	lastReq llm.Request
}

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) SupportsMimeType(mimeType string) bool { return s.mimes[mimeType] }

func (s *stubClient) GenerateJSON(_ context.Context, r llm.Request) ([]byte, error) {
	s.lastReq = r
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	return s.results[i].out, s.results[i].err
}

func pdfCapable(name string, results ...stubResult) *stubClient {
	return &stubClient{
		name:    name,
		mimes:   map[string]bool{"application/pdf": true, "image/png": true},
		results: results,
	}
}

func validOutput() []byte {
	return []byte(`{"records":[
		{"date":"2024-07-20","invoiceNumber":"INV-1","partyName":"Ex, Inc.","particulars":"A \"special\" job","taxableAmount":100,"taxAmount":13,"totalAmount":113},
		{"date":"2024-07-21","invoiceNumber":"INV-2","partyName":"Beta GmbH","taxIdNumber":"DE123456789","particulars":"Consulting","taxableAmount":200,"taxAmount":38,"totalAmount":238}
	]}`)
}

func TestRegistry_FindExtractors(t *testing.T) {
	logger := zerolog.Nop()
	gemini := extractor.NewLLMExtractor(&stubClient{
		name:  "gemini",
		mimes: map[string]bool{"application/pdf": true, "image/png": true},
	}, 1, logger)
	vision := extractor.NewLLMExtractor(&stubClient{
		name:  "openai",
		mimes: map[string]bool{"image/png": true},
	}, 1, logger)

	registry := extractor.NewRegistry(gemini, vision)

	t.Run("returns all capable extractors in registration order", func(t *testing.T) {
		found := registry.FindExtractors("image/png")
		require.Len(t, found, 2)
		assert.Equal(t, "gemini", found[0].Name())
		assert.Equal(t, "openai", found[1].Name())
	})

	t.Run("filters by MIME type", func(t *testing.T) {
		found := registry.FindExtractors("application/pdf")
		require.Len(t, found, 1)
		assert.Equal(t, "gemini", found[0].Name())
	})

	t.Run("returns nil when nothing can handle the type", func(t *testing.T) {
		assert.Nil(t, registry.FindExtractors("application/zip"))
		assert.Nil(t, registry.FindExtractor("application/zip"))
	})

	t.Run("FindExtractor returns the first match", func(t *testing.T) {
		found := registry.FindExtractor("image/png")
		require.NotNil(t, found)
		assert.Equal(t, "gemini", found.Name())
	})
}

func TestLLMExtractor_Extract(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("converts valid provider output into records", func(t *testing.T) {
		client := pdfCapable("gemini", stubResult{out: validOutput()})
		ex := extractor.NewLLMExtractor(client, 3, logger)

		records, err := ex.Extract(ctx, []byte("%PDF-1.4"), "invoices.pdf", "application/pdf")
		require.NoError(t, err)
		require.Len(t, records, 2)

		first := records[0]
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, "2024-07-20", first.Date)
		assert.Equal(t, "INV-1", first.InvoiceNumber)
		assert.Equal(t, "Ex, Inc.", first.PartyName)
		assert.Equal(t, "", first.TaxIDNumber)
		assert.Equal(t, `A "special" job`, first.Particulars)
		require.True(t, first.TaxableAmount.Valid)
		assert.Equal(t, "100", first.TaxableAmount.Decimal.String())
		require.True(t, first.TotalAmount.Valid)
		assert.Equal(t, "113", first.TotalAmount.Decimal.String())
		assert.Equal(t, "invoices.pdf", first.SourceFile)
		assert.False(t, first.TaxCreditFlag)

		second := records[1]
		assert.Equal(t, "DE123456789", second.TaxIDNumber)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("sends document bytes and prompts to the provider", func(t *testing.T) {
		client := pdfCapable("gemini", stubResult{out: []byte(`{"records":[]}`)})
		ex := extractor.NewLLMExtractor(client, 3, logger)

		_, err := ex.Extract(ctx, []byte("%PDF-1.4"), "invoices.pdf", "application/pdf")
		require.NoError(t, err)

		assert.Equal(t, []byte("%PDF-1.4"), client.lastReq.FileData)
		assert.Equal(t, "application/pdf", client.lastReq.MimeType)
		assert.Contains(t, client.lastReq.System, "invoice data extractor")
		assert.Contains(t, client.lastReq.Prompt, "invoices.pdf")
		assert.Contains(t, client.lastReq.Prompt, "JSON Schema")
	})

	t.Run("repairs amounts returned as strings", func(t *testing.T) {
		out := []byte(`{"records":[{"date":"2024-07-20","invoiceNumber":"INV-9","partyName":"Gamma","particulars":"Parts","totalAmount":"1,234.50"}]}`)
		client := pdfCapable("gemini", stubResult{out: out})
		ex := extractor.NewLLMExtractor(client, 3, logger)

		records, err := ex.Extract(ctx, nil, "a.pdf", "application/pdf")
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.True(t, records[0].TotalAmount.Valid)
		assert.Equal(t, "1234.5", records[0].TotalAmount.Decimal.String())
		assert.Equal(t, 1, client.calls)
	})

	t.Run("missing optional amounts stay null", func(t *testing.T) {
		out := []byte(`{"records":[{"date":"2024-07-20","invoiceNumber":"INV-3","partyName":"Delta","particulars":"Freight","totalAmount":50}]}`)
		client := pdfCapable("gemini", stubResult{out: out})
		ex := extractor.NewLLMExtractor(client, 3, logger)

		records, err := ex.Extract(ctx, nil, "a.pdf", "application/pdf")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.False(t, records[0].TaxableAmount.Valid)
		assert.False(t, records[0].TaxAmount.Valid)
		require.True(t, records[0].TotalAmount.Valid)
	})

	t.Run("retries transient provider failures", func(t *testing.T) {
		client := pdfCapable("gemini",
			stubResult{err: errors.New("gemini: HTTP 503")},
			stubResult{out: validOutput()},
		)
		ex := extractor.NewLLMExtractor(client, 3, logger)

		records, err := ex.Extract(ctx, nil, "a.pdf", "application/pdf")
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, 2, client.calls)
	})

	t.Run("retries output that fails schema validation", func(t *testing.T) {
		client := pdfCapable("gemini",
			stubResult{out: []byte(`{"records":[{"date":"20.07.2024","invoiceNumber":"INV-1","partyName":"X","particulars":"Y","totalAmount":1}]}`)},
			stubResult{out: validOutput()},
		)
		ex := extractor.NewLLMExtractor(client, 3, logger)

		records, err := ex.Extract(ctx, nil, "a.pdf", "application/pdf")
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, 2, client.calls)
	})

	t.Run("fails after exhausting retries", func(t *testing.T) {
		client := pdfCapable("gemini", stubResult{err: errors.New("gemini: HTTP 500")})
		ex := extractor.NewLLMExtractor(client, 3, logger)

		_, err := ex.Extract(ctx, nil, "a.pdf", "application/pdf")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all 3 attempts failed")
		assert.Equal(t, 3, client.calls)
	})

	t.Run("does not retry when no API key is configured", func(t *testing.T) {
		client := pdfCapable("gemini", stubResult{err: llm.ErrNoAPIKey})
		ex := extractor.NewLLMExtractor(client, 3, logger)

		_, err := ex.Extract(ctx, nil, "a.pdf", "application/pdf")
		assert.ErrorIs(t, err, llm.ErrNoAPIKey)
		assert.Equal(t, 1, client.calls)
	})
}

func TestValidateRecordsJSON(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"empty records", `{"records":[]}`, false},
		{"complete record", `{"records":[{"date":"2024-07-20","invoiceNumber":"I","partyName":"P","particulars":"X","taxableAmount":1,"taxAmount":0.13,"totalAmount":1.13}]}`, false},
		{"optional fields omitted", `{"records":[{"date":"2024-07-20","invoiceNumber":"I","partyName":"P","particulars":"X","totalAmount":1}]}`, false},
		{"missing total", `{"records":[{"date":"2024-07-20","invoiceNumber":"I","partyName":"P","particulars":"X"}]}`, true},
		{"bad date format", `{"records":[{"date":"July 20","invoiceNumber":"I","partyName":"P","particulars":"X","totalAmount":1}]}`, true},
		{"amount as string", `{"records":[{"date":"2024-07-20","invoiceNumber":"I","partyName":"P","particulars":"X","totalAmount":"1"}]}`, true},
		{"unknown field", `{"records":[{"date":"2024-07-20","invoiceNumber":"I","partyName":"P","particulars":"X","totalAmount":1,"currency":"EUR"}]}`, true},
		{"array root", `[]`, true},
		{"no records key", `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := extractor.ValidateRecordsJSON([]byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeRecordsJSON(t *testing.T) {
	t.Run("coerces string amounts and strips unknown keys", func(t *testing.T) {
		doc := []byte(`{"records":[{"date":"2024-07-20","invoiceNumber":"I","partyName":"P","particulars":"X","totalAmount":"1,500.00","taxAmount":null,"currency":"EUR"}]}`)

		cleaned, repaired, err := extractor.SanitizeRecordsJSON(doc)
		require.NoError(t, err)
		assert.Contains(t, repaired, "totalAmount")
		assert.Contains(t, repaired, "currency")

		var env struct {
			Records []map[string]interface{} `json:"records"`
		}
		require.NoError(t, json.Unmarshal(cleaned, &env))
		require.Len(t, env.Records, 1)
		rec := env.Records[0]
		assert.Equal(t, 1500.0, rec["totalAmount"])
		assert.NotContains(t, rec, "taxAmount")
		assert.NotContains(t, rec, "currency")

		require.NoError(t, extractor.ValidateRecordsJSON(cleaned))
	})

	t.Run("drops blank tax IDs", func(t *testing.T) {
		doc := []byte(`{"records":[{"date":"2024-07-20","invoiceNumber":"I","partyName":"P","particulars":"X","totalAmount":1,"taxIdNumber":"  "}]}`)

		cleaned, _, err := extractor.SanitizeRecordsJSON(doc)
		require.NoError(t, err)

		var env struct {
			Records []map[string]interface{} `json:"records"`
		}
		require.NoError(t, json.Unmarshal(cleaned, &env))
		assert.NotContains(t, env.Records[0], "taxIdNumber")
	})

	t.Run("rejects documents without a records array", func(t *testing.T) {
		_, _, err := extractor.SanitizeRecordsJSON([]byte(`{"invoices":[]}`))
		assert.Error(t, err)
	})
}
