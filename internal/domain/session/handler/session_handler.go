package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/conciergelab/concierge-api/internal/domain/session"
	"github.com/conciergelab/concierge-api/internal/domain/session/handler/presenter"
	"github.com/conciergelab/concierge-api/internal/types"
)

const visitCookieName = "concierge_visit"

// SessionHandler exposes the guest actions over JSON: submit inputs and
// request a recommendation, confirm a room, play the discount game, proceed,
// and reset.
type SessionHandler struct {
	service session.Service
	store   sessions.Store
	logger  *slog.Logger
}

func NewSessionHandler(svc session.Service, store sessions.Store, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		store:   store,
		logger:  logger,
	}
}

// Register mounts the guest routes on mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/session", h.GetSession)
	mux.HandleFunc("POST /v1/session/recommendation", h.RequestRecommendation)
	mux.HandleFunc("POST /v1/session/choice", h.ConfirmChoice)
	mux.HandleFunc("POST /v1/session/guess", h.SubmitGuess)
	mux.HandleFunc("POST /v1/session/finalize", h.Finalize)
	mux.HandleFunc("POST /v1/session/reset", h.Reset)
}

type recommendationRequest struct {
	GuestName     string `json:"guest_name"`
	Goal          string `json:"goal"`
	LoyaltyTier   string `json:"loyalty_tier"`
	PreferredRoom string `json:"preferred_room"`
}

type choiceRequest struct {
	// Selection is "keep" or "upgrade" on the exact-match branch.
	Selection string `json:"selection,omitempty"`
	// Option is the 1-based candidate index on the fallback branch.
	Option int `json:"option,omitempty"`
}

type guessRequest struct {
	Guess int `json:"guess"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	st := h.service.Current(r.Context())
	h.bindVisit(w, r, st.ID.String())
	h.writeJSON(w, http.StatusOK, presenter.ToSessionView(st))
}

func (h *SessionHandler) RequestRecommendation(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inputs := types.GuestInputs{
		GuestName:     req.GuestName,
		Goal:          types.TravelGoal(req.Goal),
		LoyaltyTier:   types.LoyaltyTier(req.LoyaltyTier),
		PreferredRoom: types.RoomType(req.PreferredRoom),
	}

	st, err := h.service.RequestRecommendation(r.Context(), inputs)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.bindVisit(w, r, st.ID.String())
	h.writeJSON(w, http.StatusOK, presenter.ToSessionView(st))
}

func (h *SessionHandler) ConfirmChoice(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	choice := types.RoomChoice{
		Upgrade: req.Selection == "upgrade",
		Option:  req.Option,
	}

	st, err := h.service.ConfirmChoice(r.Context(), choice)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, presenter.ToSessionView(st))
}

func (h *SessionHandler) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	var req guessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := h.service.SubmitGuess(r.Context(), req.Guess)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, presenter.ToSessionView(st))
}

func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Finalize(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, presenter.ToSessionView(st))
}

func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	st := h.service.Reset(r.Context())
	h.bindVisit(w, r, st.ID.String())
	h.writeJSON(w, http.StatusOK, presenter.ToSessionView(st))
}

// bindVisit stamps the active session ID into the visit cookie so reloads
// keep rendering the same guest flow.
func (h *SessionHandler) bindVisit(w http.ResponseWriter, r *http.Request, sessionID string) {
	visit, err := h.store.Get(r, visitCookieName)
	if err != nil {
		// A stale or tampered cookie decodes to a fresh session anyway.
		h.logger.Debug("rebuilding visit cookie", slog.Any("error", err))
	}
	if visit.Values["session_id"] == sessionID {
		return
	}
	visit.Values["session_id"] = sessionID
	if err := visit.Save(r, w); err != nil {
		h.logger.Warn("failed to save visit cookie", slog.Any("error", err))
	}
}

func (h *SessionHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrGuestNameRequired),
		errors.Is(err, types.ErrBadRequest),
		errors.Is(err, types.ErrInvalidGuess),
		errors.Is(err, types.ErrInvalidChoice):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrInvalidStage):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, types.ErrNoRecommendation):
		h.writeError(w, http.StatusNotFound, "Sorry, no recommendations available.")
	default:
		h.logger.Error("unexpected handler error", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *SessionHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func (h *SessionHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}
