package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
	"github.com/ledgerscan/ledgerscan-backend/internal/llm"
)

// LLMExtractor extracts invoice records by sending the document to a
// language-model provider and parsing its JSON output. Output that fails
// schema validation goes through one lenient repair pass before the
// attempt counts as failed.
type LLMExtractor struct {
	client     llm.Client
	maxRetries int
	logger     zerolog.Logger
}

// NewLLMExtractor creates an extractor backed by the given provider client
func NewLLMExtractor(client llm.Client, maxRetries int, logger zerolog.Logger) *LLMExtractor {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &LLMExtractor{
		client:     client,
		maxRetries: maxRetries,
		logger:     logger.With().Str("extractor", client.Name()).Logger(),
	}
}

func (e *LLMExtractor) Name() string { return e.client.Name() }

func (e *LLMExtractor) CanExtract(mimeType string) bool {
	return e.client.SupportsMimeType(mimeType)
}

// Extract sends the document to the provider and converts the returned JSON
// into domain records. It retries transient provider failures and malformed
// output up to maxRetries times.
func (e *LLMExtractor) Extract(ctx context.Context, data []byte, filename, mimeType string) ([]domain.Record, error) {
	req := llm.Request{
		System:   buildSystemPrompt(),
		Prompt:   buildUserPrompt(filename),
		FileData: data,
		MimeType: mimeType,
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		out, err := e.client.GenerateJSON(ctx, req)
		if err != nil {
			if errors.Is(err, llm.ErrNoAPIKey) || ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			e.logger.Warn().
				Err(err).
				Str("file", filename).
				Int("attempt", attempt).
				Int("max_retries", e.maxRetries).
				Msg("Provider request failed, retrying")
			continue
		}

		if vErr := ValidateRecordsJSON(out); vErr != nil {
			cleaned, repaired, sErr := SanitizeRecordsJSON(out)
			if sErr != nil {
				lastErr = fmt.Errorf("unparseable output: %w", sErr)
				e.logger.Warn().
					Err(sErr).
					Str("file", filename).
					Int("attempt", attempt).
					Msg("Provider returned unparseable JSON, retrying")
				continue
			}
			if vErr2 := ValidateRecordsJSON(cleaned); vErr2 != nil {
				lastErr = vErr2
				e.logger.Warn().
					Err(vErr2).
					Str("file", filename).
					Int("attempt", attempt).
					Msg("Provider output failed schema validation, retrying")
				continue
			}
			if len(repaired) > 0 {
				e.logger.Debug().
					Strs("repaired_fields", repaired).
					Str("file", filename).
					Msg("Repaired provider output")
			}
			out = cleaned
		}

		records, err := decodeRecords(out, filename)
		if err != nil {
			lastErr = err
			continue
		}
		return records, nil
	}

	return nil, fmt.Errorf("extract %s: all %d attempts failed, last error: %w", filename, e.maxRetries, lastErr)
}

type wireRecord struct {
	Date          string   `json:"date"`
	InvoiceNumber string   `json:"invoiceNumber"`
	PartyName     string   `json:"partyName"`
	TaxIDNumber   string   `json:"taxIdNumber"`
	Particulars   string   `json:"particulars"`
	TaxableAmount *float64 `json:"taxableAmount"`
	TaxAmount     *float64 `json:"taxAmount"`
	TotalAmount   *float64 `json:"totalAmount"`
}

type wireEnvelope struct {
	Records []wireRecord `json:"records"`
}

// decodeRecords converts validated provider JSON into domain records.
// Required string fields the model left blank are defaulted to "N/A" so
// downstream consumers never see a hole where a value is expected; the
// optional tax ID stays empty when absent.
func decodeRecords(data []byte, filename string) ([]domain.Record, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	records := make([]domain.Record, 0, len(env.Records))
	for _, w := range env.Records {
		records = append(records, domain.Record{
			ID:            uuid.New().String(),
			Date:          orSentinel(w.Date),
			InvoiceNumber: orSentinel(w.InvoiceNumber),
			PartyName:     orSentinel(w.PartyName),
			TaxIDNumber:   strings.TrimSpace(w.TaxIDNumber),
			Particulars:   orSentinel(w.Particulars),
			TaxableAmount: toNullDecimal(w.TaxableAmount),
			TaxAmount:     toNullDecimal(w.TaxAmount),
			TotalAmount:   toNullDecimal(w.TotalAmount),
			SourceFile:    filename,
			TaxCreditFlag: false,
		})
	}
	return records, nil
}

func orSentinel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "N/A"
	}
	return s
}

func toNullDecimal(f *float64) decimal.NullDecimal {
	if f == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(*f), Valid: true}
}
