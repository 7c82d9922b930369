package amqp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportRequestMessage asks the report worker to render a dashboard
// document. Year and Month are optional filters; Month requires Year.
type ReportRequestMessage struct {
	ID          uuid.UUID `json:"id"`
	Year        int       `json:"year,omitempty"`
	Month       int       `json:"month,omitempty"`
	Sort        string    `json:"sort,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// NewReportRequestMessage creates a message with a fresh ID.
func NewReportRequestMessage(year, month int, sort string) *ReportRequestMessage {
	return &ReportRequestMessage{
		ID:          uuid.New(),
		Year:        year,
		Month:       month,
		Sort:        strings.ToLower(strings.TrimSpace(sort)),
		RequestedAt: time.Now().UTC(),
	}
}

// Validate rejects messages the worker could never satisfy.
func (m *ReportRequestMessage) Validate() error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("report request without id")
	}
	if m.Month < 0 || m.Month > 12 {
		return fmt.Errorf("invalid month: %d", m.Month)
	}
	if m.Month != 0 && m.Year == 0 {
		return fmt.Errorf("month filter requires a year")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestMessageFromJSON decodes and validates a message.
func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
