package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Extraction events
	EventExtractionCompleted = "extraction.completed"
	EventExtractionFailed    = "extraction.failed"

	// Export events
	EventExportCompleted = "export.completed"
	EventExportFailed    = "export.failed"
)

// Exchange names
const (
	ExchangeEvents = "ledgerscan.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Extraction Events

// ExtractionCompletedEvent is published when an extraction job finishes
type ExtractionCompletedEvent struct {
	JobID       string   `json:"job_id"`
	WorkspaceID string   `json:"workspace_id"`
	FileCount   int      `json:"file_count"`
	RecordCount int      `json:"record_count"`
	Providers   []string `json:"providers,omitempty"`
	DurationMs  int64    `json:"duration_ms"`
}

// ExtractionFailedEvent is published when every file in an extraction job fails
type ExtractionFailedEvent struct {
	JobID       string `json:"job_id"`
	WorkspaceID string `json:"workspace_id"`
	FileCount   int    `json:"file_count"`
	Error       string `json:"error"`
}

// Export Events

// ExportCompletedEvent is published when an export is delivered
type ExportCompletedEvent struct {
	ExportID    string `json:"export_id"`
	WorkspaceID string `json:"workspace_id"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	Scope       string `json:"scope"`
	RecordCount int    `json:"record_count"`
	Tier        string `json:"tier"`
	Path        string `json:"path,omitempty"`
}

// ExportFailedEvent is published when an export ends without delivery
type ExportFailedEvent struct {
	ExportID    string `json:"export_id"`
	WorkspaceID string `json:"workspace_id"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
