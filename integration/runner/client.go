package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/internal/handlers"
)

// APIResponse is a decoded reply from the games API. Exactly one of Game and
// Error is set.
type APIResponse struct {
	Status int
	Game   *handlers.GameResponse
	Error  *handlers.ErrorResponse
}

// CreateGame posts a new game and returns its id.
func CreateGame(ctx context.Context, client *http.Client, baseURL string, name string) (uuid.UUID, error) {
	resp, err := send(ctx, client, http.MethodPost, baseURL+"/v1/games", handlers.CreateGameRequest{Name: name})
	if err != nil {
		return uuid.Nil, err
	}
	if resp.Status != http.StatusCreated || resp.Game == nil {
		return uuid.Nil, fmt.Errorf("create game returned %d: %s", resp.Status, resp.describeError())
	}
	return resp.Game.ID, nil
}

// PostAction sends one action to a game.
func PostAction(ctx context.Context, client *http.Client, baseURL string, gameID uuid.UUID, action handlers.ActionRequest) (*APIResponse, error) {
	return send(ctx, client, http.MethodPost, fmt.Sprintf("%s/v1/games/%s/actions", baseURL, gameID), action)
}

// GetGame fetches the current view of a game.
func GetGame(ctx context.Context, client *http.Client, baseURL string, gameID uuid.UUID) (*APIResponse, error) {
	return send(ctx, client, http.MethodGet, fmt.Sprintf("%s/v1/games/%s", baseURL, gameID), nil)
}

func send(ctx context.Context, client *http.Client, method, url string, body any) (*APIResponse, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := &APIResponse{Status: resp.StatusCode}
	if resp.StatusCode >= http.StatusBadRequest {
		var errResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		out.Error = &errResp
		return out, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}

	var game handlers.GameResponse
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, fmt.Errorf("failed to parse game response: %w", err)
	}
	out.Game = &game
	return out, nil
}

func (r *APIResponse) describeError() string {
	if r.Error == nil {
		return "no error body"
	}
	if r.Error.Code != "" {
		return r.Error.Code + ": " + r.Error.Error
	}
	return r.Error.Error
}
