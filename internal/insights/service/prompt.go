package service

import (
	"strings"

	"github.com/ledgerscan/ledgerscan-backend/internal/export/format"
	"github.com/ledgerscan/ledgerscan-backend/internal/extraction/domain"
)

func buildSystemPrompt() string {
	parts := []string{
		"You are a bookkeeping analyst for small businesses.",
		"You are given extracted invoice records as CSV.",
		"Base every statement strictly on the rows provided; never invent numbers.",
		"Amounts are plain decimals without currency symbols.",
		"taxCreditFlag marks records the user claims input tax credit for.",
		"Answer in the language the question is asked in.",
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(records []domain.Record, question string) string {
	var b strings.Builder
	b.WriteString("Invoice records (CSV):\n")
	b.Write(format.BuildCSV(records))
	b.WriteString("\n")
	if question == "" {
		b.WriteString("Summarize notable patterns: largest counterparties, period totals, unusual amounts, and tax credit coverage.")
	} else {
		b.WriteString("Question: ")
		b.WriteString(question)
	}
	return b.String()
}
