package models

import "encoding/json"

// EscrowResponse is the wire shape returned by create and apply: the new
// snapshot together with the tagged event the operation produced.
type EscrowResponse struct {
	Escrow *Escrow         `json:"escrow"`
	Event  json.RawMessage `json:"event,omitempty"`
}

// ErrorResponse is the shared JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
