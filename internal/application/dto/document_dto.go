package dto

import "time"

// DocumentStatusResponse estado de conciliación de un comprobante para GET /api/documents/:id/status.
type DocumentStatusResponse struct {
	ID                  string     `json:"id"`
	DocumentType        string     `json:"document_type"`
	Sequential          int64      `json:"sequential"`
	AccessKey           string     `json:"access_key,omitempty"`
	Environment         string     `json:"environment"`
	Status              string     `json:"status"`
	SRIMessage          string     `json:"sri_message,omitempty"`
	AuthorizationNumber string     `json:"authorization_number,omitempty"`
	AuthorizationDate   *time.Time `json:"authorization_date,omitempty"`
	Terminal            bool       `json:"terminal"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
