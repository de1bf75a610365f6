package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cardboard/internal/apperr"
	"github.com/starford/cardboard/internal/cardapi"
	"github.com/starford/cardboard/internal/session"
	"github.com/starford/cardboard/internal/ui"
)

const maxRequestBody = 64 << 10

// Handler holds API route handlers.
type Handler struct {
	reg      *session.Registry
	renderer *ui.Renderer
}

// NewHandler creates a new Handler.
func NewHandler(reg *session.Registry, renderer *ui.Renderer) *Handler {
	return &Handler{reg: reg, renderer: renderer}
}

// Page handles GET /. Every page load mounts a fresh board.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	s := h.reg.Create()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err := h.renderer.RenderPage(w, ui.Page{
		SessionID:  s.ID,
		View:       s.Board.Snapshot(),
		Toasts:     s.Toasts.Active(),
		Transition: h.reg.Settings().Transition,
	})
	if err != nil {
		slog.Error("render page failed", slog.String("session", s.ID), slog.String("error", err.Error()))
	}
}

// GetBoard handles GET /api/sessions/{sid}/board.
//
//	@Summary		Current board state of a session
//	@Tags			board
//	@Produce		json
//	@Param			sid	path		string	true	"Session id"
//	@Success		200	{object}	BoardResponse
//	@Failure		404	{object}	errResponse
//	@Router			/sessions/{sid}/board [get]
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	writeJSON(w, http.StatusOK, BoardResponse{
		Session: s.ID,
		Board:   s.Board.Snapshot(),
		Toasts:  s.Toasts.Active(),
	})
}

// AddCard handles POST /api/sessions/{sid}/cards.
//
//	@Summary		Add a card
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string			true	"Session id"
//	@Param			body	body		AddCardRequest	false	"Optional card content"
//	@Success		201		{object}	models.Card
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Router			/sessions/{sid}/cards [post]
func (h *Handler) AddCard(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}

	var req AddCardRequest
	if len(bytes.TrimSpace(body)) > 0 && !bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	ctx, cancel := s.OpContext()
	defer cancel()
	card, err := s.Board.Add(ctx, req.Draft())
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// DeleteCard handles DELETE /api/sessions/{sid}/cards/{id}.
//
//	@Summary		Delete a card
//	@Tags			cards
//	@Param			sid	path	string	true	"Session id"
//	@Param			id	path	string	true	"Card id"
//	@Success		204	"Card deleted"
//	@Failure		409	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Router			/sessions/{sid}/cards/{id} [delete]
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}

	ctx, cancel := s.OpContext()
	defer cancel()
	if err := s.Board.Delete(ctx, id); err != nil {
		writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DismissToast handles DELETE /api/sessions/{sid}/toasts/{tid}.
//
//	@Summary		Dismiss a notification
//	@Tags			toasts
//	@Param			sid	path	string	true	"Session id"
//	@Param			tid	path	string	true	"Notification id"
//	@Success		204	"Dismissed"
//	@Failure		404	{object}	errResponse
//	@Router			/sessions/{sid}/toasts/{tid} [delete]
func (h *Handler) DismissToast(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if !s.Toasts.Dismiss(chi.URLParam(r, "tid")) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events handles GET /api/sessions/{sid}/events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).Broker.ServeHTTP(w, r)
}

// writeOpError maps a board operation failure. The user has already been
// notified through the session's toasts.
func writeOpError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperr.ErrBusy) {
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusBadGateway, errorBody(cardapi.Message(err)))
}
