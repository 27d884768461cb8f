package extractor

import (
	"encoding/json"
	"strings"
)

func buildSystemPrompt() string {
	parts := []string{
		"You are an invoice data extractor. Return ONLY JSON that matches the JSON Schema provided.",
		"The document may contain one invoice or several; emit one records entry per invoice.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Amounts are plain numbers without currency symbols or thousands separators.",
		"partyName is the counterparty that issued the invoice.",
		"particulars is a short description of the goods or services billed.",
		"taxIdNumber is the issuer's tax registration number; omit it if the document does not show one.",
		"Never output null. If a field is not present, omit it.",
		"If the document contains no invoices, return {\"records\": []}.",
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(filename string) string {
	var b strings.Builder
	b.WriteString("Extract all invoice records from the attached document.\n")
	b.WriteString("Filename: ")
	b.WriteString(filename)
	b.WriteString("\n\nThe output must match this JSON Schema:\n")
	b.WriteString(mustJSON(BuildRecordsJSONSchema()))
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
