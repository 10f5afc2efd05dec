package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/jwebster45206/branch-engine/pkg/storage"
	"github.com/jwebster45206/branch-engine/pkg/story"
	"github.com/jwebster45206/branch-engine/pkg/textfilter"
)

type StorySummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type StoryResponse struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Graph    *story.Graph    `json:"graph"`
	Warnings []story.Finding `json:"warnings"`
}

// StoryHandler serves story listings and story graphs.
type StoryHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewStoryHandler(storage storage.Storage, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{
		storage: storage,
		logger:  logger,
	}
}

// List handles GET /v1/stories
func (h *StoryHandler) List(w http.ResponseWriter, r *http.Request) {
	stories, err := h.storage.ListStories(r.Context())
	if err != nil {
		h.logger.Error("Failed to list stories", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list stories")
		return
	}

	out := make([]StorySummary, 0, len(stories))
	for id, title := range stories {
		out = append(out, StorySummary{ID: id, Title: title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, h.logger, http.StatusOK, out)
}

// Get handles GET /v1/stories/{id}
func (h *StoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	g, err := h.storage.GetStory(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrStoryNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Story not found")
			return
		}
		h.logger.Error("Failed to load story", "id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load story")
		return
	}

	warnings := story.Lint(g)
	if warnings == nil {
		warnings = []story.Finding{}
	}
	writeJSON(w, h.logger, http.StatusOK, StoryResponse{
		ID:       id,
		Title:    textfilter.Title(id),
		Graph:    g,
		Warnings: warnings,
	})
}
