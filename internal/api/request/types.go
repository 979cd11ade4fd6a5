package request

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mcoot/echorelay/internal/document"
	"github.com/mcoot/echorelay/internal/model"
)

// MaxBodyBytes caps request bodies accepted by the admin API
const MaxBodyBytes = 1 << 20

// StartSessionRequest is the body of POST /sessions/{sessionId}
type StartSessionRequest struct {
	LobbyType int            `json:"lobby_type"`
	Channel   string         `json:"channel"`
	GameType  int64          `json:"game_type"`
	Level     int64          `json:"level"`
	Settings  document.Value `json:"settings"`
}

// Params converts the request into service parameters
func (r StartSessionRequest) Params() model.StartSessionParams {
	return model.StartSessionParams{
		LobbyType: r.LobbyType,
		Channel:   r.Channel,
		GameType:  r.GameType,
		Level:     r.Level,
		Settings:  r.Settings,
	}
}

// ReadDocument reads the request body as a single JSON document
func ReadDocument(w http.ResponseWriter, r *http.Request) (document.Value, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return document.Value{}, fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
	}
	return document.Parse(data)
}

// Page reads pageNumber and pageSize query parameters, applying defaults
func Page(r *http.Request) (model.Page, error) {
	number, err := intQuery(r, "pageNumber", model.DefaultPageNumber)
	if err != nil {
		return model.Page{}, err
	}
	size, err := intQuery(r, "pageSize", model.DefaultPageSize)
	if err != nil {
		return model.Page{}, err
	}
	return model.NewPage(number, size)
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", model.ErrInvalidArgument, name)
	}
	return n, nil
}

// AccountID parses the {id} path variable
func AccountID(r *http.Request) (model.XPlatformID, error) {
	return model.ParseXPlatformID(mux.Vars(r)["id"])
}

// SessionID parses the {sessionId} path variable
func SessionID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["sessionId"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: session id %q is not a uuid", model.ErrInvalidArgument, raw)
	}
	return id, nil
}
