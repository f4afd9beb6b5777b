package models

import "time"

// WebhookEventLog records one accepted inbound Notion webhook event.
// Entries are append-only and never mutated after creation.
type WebhookEventLog struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	WorkspaceID  string    `json:"workspace_id"`
	DataSourceID string    `json:"data_source_id,omitempty"`
	ObjectID     string    `json:"object_id"`
	ReceivedAt   time.Time `json:"received_at"`
	Processed    bool      `json:"processed"`
	Error        string    `json:"error,omitempty"`
}
