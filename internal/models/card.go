// Package models defines the domain types for Cardboard.
package models

// Card is a titled text record managed by the remote collection endpoint.
// Fields the remote service adds beyond these are ignored.
type Card struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CardDraft carries the optional content for a new card.
type CardDraft struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsEmpty reports whether the draft carries no content. An empty draft is
// sent as a request without a body so the remote service applies its defaults.
func (d *CardDraft) IsEmpty() bool {
	return d == nil || (d.Title == "" && d.Description == "")
}
