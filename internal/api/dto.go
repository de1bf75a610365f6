package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cardboard/internal/board"
	"github.com/starford/cardboard/internal/models"
	"github.com/starford/cardboard/internal/toast"
)

// Field limits for new cards.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000
)

// AddCardRequest is the optional request body for adding a card.
type AddCardRequest struct {
	Title       string `json:"title" example:"Groceries"`
	Description string `json:"description" example:"Milk, eggs"`
}

// Validate validates the request.
func (r AddCardRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.RuneLength(0, MaxTitleLen)),
		validation.Field(&r.Description, validation.RuneLength(0, MaxDescriptionLen)),
	)
}

// Draft converts the request into a card draft.
func (r AddCardRequest) Draft() *models.CardDraft {
	return &models.CardDraft{Title: r.Title, Description: r.Description}
}

// BoardResponse is the JSON rendering of a session's board.
type BoardResponse struct {
	Session string               `json:"session" example:"6f1c..." validate:"required"`
	Board   board.View           `json:"board" validate:"required"`
	Toasts  []toast.Notification `json:"toasts" validate:"required"`
}
