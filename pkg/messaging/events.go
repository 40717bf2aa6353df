package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Inventory events
	EventBatchCreated  = "inventory.batch.created"
	EventStockAdjusted = "inventory.stock.adjusted"

	// Distribution events
	EventDistributionCreated       = "distribution.created"
	EventDistributionStatusChanged = "distribution.status.changed"

	// Report events
	EventReportSubmitted = "report.submitted"

	// User events
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeUserEvents      = "user.events"
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

// BatchCreatedEvent is published when a new inventory batch is recorded
type BatchCreatedEvent struct {
	BatchID    string `json:"batch_id"`
	MedicineID string `json:"medicine_id"`
	Campus     string `json:"campus"`
	Quantity   int    `json:"quantity"`
}

// StockAdjustedEvent is published when a batch quantity is corrected
type StockAdjustedEvent struct {
	BatchID     string `json:"batch_id"`
	MedicineID  string `json:"medicine_id"`
	Campus      string `json:"campus"`
	NewQuantity int    `json:"new_quantity"`
	PerformedBy string `json:"performed_by"`
}

// DistributionCreatedEvent is published after a transfer commits
type DistributionCreatedEvent struct {
	DistributionID  string `json:"distribution_id"`
	ReferenceNumber string `json:"reference_number"`
	MedicineID      string `json:"medicine_id"`
	FromCampus      string `json:"from_campus"`
	ToCampus        string `json:"to_campus"`
	Quantity        int    `json:"quantity"`
}

// DistributionStatusChangedEvent is published when a distribution status is updated
type DistributionStatusChangedEvent struct {
	DistributionID string `json:"distribution_id"`
	OldStatus      string `json:"old_status"`
	NewStatus      string `json:"new_status"`
}

// ReportSubmittedEvent is published when a monthly report is submitted
type ReportSubmittedEvent struct {
	ReportID string `json:"report_id"`
	Campus   string `json:"campus"`
	Month    int    `json:"month"`
	Year     int    `json:"year"`
}

// UserCreatedEvent is published when a user account is created
type UserCreatedEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Campus string `json:"campus"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
