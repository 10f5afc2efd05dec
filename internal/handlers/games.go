package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/internal/session"
	"github.com/jwebster45206/branch-engine/pkg/engine"
	"github.com/jwebster45206/branch-engine/pkg/state"
	"github.com/jwebster45206/branch-engine/pkg/story"
)

// maxBodyBytes bounds request bodies; a snapshot is well under this.
const maxBodyBytes = 64 << 10

// CreateGameRequest is the body of POST /v1/games
type CreateGameRequest struct {
	Name string `json:"name"`
}

// ActionRequest is the body of POST /v1/games/{id}/actions
type ActionRequest struct {
	Type     engine.Kind     `json:"type"`
	Name     string          `json:"name,omitempty"`
	To       story.NodeID    `json:"to,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

// GameResponse wraps the render model with the game id
type GameResponse struct {
	ID uuid.UUID `json:"id"`
	*session.View
}

var errBadRequest = errors.New("bad request")

// ActionFromRequest turns a decoded request into an engine action. Names are
// normalized here so the engine never sees raw input.
func ActionFromRequest(req ActionRequest) (engine.Action, error) {
	switch req.Type {
	case engine.KindStart:
		name, err := engine.NormalizeName(req.Name)
		if err != nil {
			return nil, err
		}
		return engine.Start{Name: name}, nil
	case engine.KindChoose:
		if req.To == "" {
			return nil, fmt.Errorf("%w: choose needs a destination", errBadRequest)
		}
		return engine.Choose{To: req.To}, nil
	case engine.KindAcknowledgeDamage:
		return engine.AcknowledgeDamage{}, nil
	case engine.KindClearJumpscare:
		return engine.ClearJumpscare{}, nil
	case engine.KindReset:
		return engine.Reset{}, nil
	case engine.KindLoad:
		if len(req.Snapshot) == 0 {
			return nil, fmt.Errorf("%w: load needs a snapshot", engine.ErrInvalidSnapshot)
		}
		gs, err := state.Decode(req.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrInvalidSnapshot, err)
		}
		return engine.Load{Snapshot: gs}, nil
	default:
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownAction, req.Type)
	}
}

// GameHandler exposes the session manager over HTTP.
type GameHandler struct {
	manager *session.Manager
	logger  *slog.Logger
}

func NewGameHandler(manager *session.Manager, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		manager: manager,
		logger:  logger,
	}
}

// Create handles POST /v1/games
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	name, err := engine.NormalizeName(req.Name)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Player name is required")
		return
	}

	id := uuid.New()
	if _, err := h.manager.Dispatch(r.Context(), id, engine.Start{Name: name}); err != nil {
		h.writeDispatchError(w, id, err)
		return
	}
	h.logger.Info("Game created", "game_id", id.String(), "player", name)
	h.writeView(w, r, id, http.StatusCreated)
}

// Get handles GET /v1/games/{id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.gameID(w, r)
	if !ok {
		return
	}
	h.writeView(w, r, id, http.StatusOK)
}

// Act handles POST /v1/games/{id}/actions
func (h *GameHandler) Act(w http.ResponseWriter, r *http.Request) {
	id, ok := h.gameID(w, r)
	if !ok {
		return
	}

	var req ActionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	action, err := ActionFromRequest(req)
	if err != nil {
		h.writeDispatchError(w, id, err)
		return
	}

	if _, err := h.manager.Dispatch(r.Context(), id, action); err != nil {
		h.writeDispatchError(w, id, err)
		return
	}
	h.writeView(w, r, id, http.StatusOK)
}

// Reset handles DELETE /v1/games/{id}
func (h *GameHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.gameID(w, r)
	if !ok {
		return
	}
	if _, err := h.manager.Dispatch(r.Context(), id, engine.Reset{}); err != nil {
		h.writeDispatchError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GameHandler) gameID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.logger.Warn("Invalid game ID", "id", raw, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid game ID format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *GameHandler) writeView(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	v, err := h.manager.View(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to build game view", "game_id", id.String(), "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load game")
		return
	}
	writeJSON(w, h.logger, status, GameResponse{ID: id, View: v})
}

func (h *GameHandler) writeDispatchError(w http.ResponseWriter, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidChoice), errors.Is(err, engine.ErrNotStarted):
		writeJSON(w, h.logger, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrNodeNotFound):
		writeJSON(w, h.logger, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "The path you were on no longer exists. Reset to start over.",
			Code:  "path_not_found",
		})
	case errors.Is(err, engine.ErrInvalidName),
		errors.Is(err, engine.ErrInvalidSnapshot),
		errors.Is(err, engine.ErrUnknownAction),
		errors.Is(err, errBadRequest):
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Transition failed", "game_id", id.String(), "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
