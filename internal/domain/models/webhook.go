package models

import "time"

// WebhookLogEntry is the append-only audit row for every raw inbound
// notification. Only processed/processing_error are ever flipped afterwards.
type WebhookLogEntry struct {
	ID              string    `json:"id"` // uuid
	TransactionID   string    `json:"transaction_id"`
	Payload         string    `json:"payload"`
	Signature       string    `json:"signature"`
	SignatureValid  bool      `json:"signature_valid"`
	SourceIP        string    `json:"source_ip"`
	Processed       bool      `json:"processed"`
	ProcessingError string    `json:"processing_error"`
	ReceivedAt      time.Time `json:"received_at"`
}
