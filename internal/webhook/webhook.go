// Package webhook parses and classifies inbound Notion webhook events,
// covering both the legacy event types and the data_source events added in
// API version 2025-09-03.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mergington/mhs/internal/models"
)

// Event types delivered by Notion. The legacy and data_source sets are
// fixed and mutually exclusive.
const (
	EventDatabaseUpdated = "database.updated"
	EventPageCreated     = "page.created"
	EventPageUpdated     = "page.updated"
	EventPageDeleted     = "page.deleted"

	EventDataSourceContentUpdated = "data_source.content_updated"
	EventDataSourceSchemaUpdated  = "data_source.schema_updated"
	EventDataSourceCreated        = "data_source.created"
	EventDataSourceMoved          = "data_source.moved"
	EventDataSourceDeleted        = "data_source.deleted"
	EventDataSourceUndeleted      = "data_source.undeleted"
)

var legacyEvents = map[string]bool{
	EventDatabaseUpdated: true,
	EventPageCreated:     true,
	EventPageUpdated:     true,
	EventPageDeleted:     true,
}

var dataSourceEvents = map[string]bool{
	EventDataSourceContentUpdated: true,
	EventDataSourceSchemaUpdated:  true,
	EventDataSourceCreated:        true,
	EventDataSourceMoved:          true,
	EventDataSourceDeleted:        true,
	EventDataSourceUndeleted:      true,
}

// IsLegacyEvent reports whether eventType belongs to the legacy set.
func IsLegacyEvent(eventType string) bool {
	return legacyEvents[eventType]
}

// IsDataSourceEvent reports whether eventType belongs to the data_source
// set introduced with multi-source databases.
func IsDataSourceEvent(eventType string) bool {
	return dataSourceEvents[eventType]
}

// KnownEventType reports whether eventType belongs to either set.
func KnownEventType(eventType string) bool {
	return IsLegacyEvent(eventType) || IsDataSourceEvent(eventType)
}

// Parent is the parent object nested in a webhook payload. data_source_id
// is only present for multi-source databases.
type Parent struct {
	Type         string `json:"type"`
	DatabaseID   string `json:"database_id,omitempty"`
	PageID       string `json:"page_id,omitempty"`
	Workspace    bool   `json:"workspace,omitempty"`
	DataSourceID string `json:"data_source_id,omitempty"`
}

// EventData is the data object carried by a webhook event.
type EventData struct {
	Object         string          `json:"object"`
	ID             string          `json:"id"`
	Parent         *Parent         `json:"parent,omitempty"`
	CreatedTime    string          `json:"created_time,omitempty"`
	LastEditedTime string          `json:"last_edited_time,omitempty"`
	Properties     json.RawMessage `json:"properties,omitempty"`
}

// Event is a complete Notion webhook event.
type Event struct {
	Type        string    `json:"type"`
	EventID     string    `json:"event_id"`
	CreatedAt   string    `json:"created_at"`
	WorkspaceID string    `json:"workspace_id"`
	Data        EventData `json:"data"`
}

// ParseEvent decodes and validates a raw webhook payload.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if ev.Type == "" || ev.EventID == "" || ev.Data.ID == "" {
		return nil, fmt.Errorf("webhook payload missing required fields")
	}
	if !KnownEventType(ev.Type) {
		return nil, fmt.Errorf("unknown event type: %s", ev.Type)
	}
	return &ev, nil
}

// DataSourceID returns the data source identifier from the event's parent
// object, or "" when absent.
func (e *Event) DataSourceID() string {
	if e.Data.Parent != nil {
		return e.Data.Parent.DataSourceID
	}
	return ""
}

// LogEntry builds the append-only log record for an accepted event.
func (e *Event) LogEntry(now time.Time) *models.WebhookEventLog {
	return &models.WebhookEventLog{
		EventID:      e.EventID,
		EventType:    e.Type,
		WorkspaceID:  e.WorkspaceID,
		DataSourceID: e.DataSourceID(),
		ObjectID:     e.Data.ID,
		ReceivedAt:   now,
		Processed:    true,
	}
}

// VerifySignature checks a Notion webhook signature. Notion signs
// HMAC-SHA256 over "timestamp:body" with the shared secret; comparison is
// constant-time.
func VerifySignature(signature, timestamp string, body []byte, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(":"))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
