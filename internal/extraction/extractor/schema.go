package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildRecordsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. It is embedded in the prompt as an output constraint and also
// used locally to validate what the model returned. The root is an object
// holding a "records" array so providers restricted to object-rooted JSON
// output can comply.
func BuildRecordsJSONSchema() map[string]any {
	recordProps := map[string]any{
		"date":          map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"invoiceNumber": map[string]any{"type": "string", "minLength": 1},
		"partyName":     map[string]any{"type": "string", "minLength": 1},
		"taxIdNumber":   map[string]any{"type": "string"},
		"particulars":   map[string]any{"type": "string", "minLength": 1},
		"taxableAmount": map[string]any{"type": "number"},
		"taxAmount":     map[string]any{"type": "number"},
		"totalAmount":   map[string]any{"type": "number"},
	}
	// invoices do not always break out tax, so only the total is a
	// required amount
	required := []string{
		"date", "invoiceNumber", "partyName", "particulars", "totalAmount",
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"records": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties":           recordProps,
					"required":             required,
				},
			},
		},
		"required": []string{"records"},
	}
}

// ValidateRecordsJSON validates "data" against the records output schema
func ValidateRecordsJSON(data []byte) error {
	b, err := json.Marshal(BuildRecordsJSONSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("records.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("records.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

var amountFields = []string{"taxableAmount", "taxAmount", "totalAmount"}

// SanitizeRecordsJSON normalizes fields that models frequently get slightly
// wrong, so the document can still validate: amounts given as strings are
// coerced to numbers, null or empty optionals are dropped, and stray keys
// are removed. Returns the cleaned document and the names of fields that
// were repaired.
func SanitizeRecordsJSON(doc []byte) ([]byte, []string, error) {
	var root map[string]any
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, nil, err
	}

	rawRecords, ok := root["records"].([]any)
	if !ok {
		return nil, nil, fmt.Errorf("document has no records array")
	}

	allowed := map[string]bool{
		"date": true, "invoiceNumber": true, "partyName": true,
		"taxIdNumber": true, "particulars": true,
		"taxableAmount": true, "taxAmount": true, "totalAmount": true,
	}

	var repaired []string
	cleaned := make([]any, 0, len(rawRecords))
	for _, raw := range rawRecords {
		rec, ok := raw.(map[string]any)
		if !ok {
			repaired = append(repaired, "records")
			continue
		}

		for k, v := range rec {
			if !allowed[k] {
				delete(rec, k)
				repaired = append(repaired, k)
				continue
			}
			if v == nil {
				delete(rec, k)
				repaired = append(repaired, k)
			}
		}

		// taxIdNumber is optional; drop it when blank so minLength-free
		// strings don't carry whitespace through
		if v, ok := rec["taxIdNumber"].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				delete(rec, "taxIdNumber")
			} else {
				rec["taxIdNumber"] = s
			}
		}

		for _, k := range amountFields {
			v, ok := rec[k]
			if !ok {
				continue
			}
			switch t := v.(type) {
			case float64:
				// already a number
			case string:
				s := strings.TrimSpace(t)
				s = strings.ReplaceAll(s, ",", "")
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					rec[k] = f
					repaired = append(repaired, k)
				} else {
					delete(rec, k)
					repaired = append(repaired, k)
				}
			default:
				delete(rec, k)
				repaired = append(repaired, k)
			}
		}

		cleaned = append(cleaned, rec)
	}

	root["records"] = cleaned
	b, err := json.Marshal(root)
	if err != nil {
		return nil, nil, err
	}
	return b, repaired, nil
}
