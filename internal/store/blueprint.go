package store

import "time"

// Blueprint is a stored code artifact, the unit of ingestion and retrieval.
type Blueprint struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SearchText is the text a blueprint contributes to analysis and embedding:
// name, description and code joined in that order.
func (b *Blueprint) SearchText() string {
	return b.Name + "\n" + b.Description + "\n" + b.Code
}
