package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case AccountDocument:
		o.printAccount(v)
	case IDList:
		o.printIDList(v)
	case Session:
		o.printSession(v)
	case StartSessionResult:
		_, _ = fmt.Fprintf(o.w, "Session started: %s\n", v.SessionID)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// AccountDocument is a stored account document, kept verbatim
type AccountDocument json.RawMessage

// MarshalJSON emits the document unchanged
func (d AccountDocument) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

// UnmarshalJSON keeps a copy of the raw document
func (d *AccountDocument) UnmarshalJSON(data []byte) error {
	*d = append((*d)[:0], data...)
	return nil
}

// IDList is a page of account or session ids
type IDList []string

// SessionDescriptor response type
type SessionDescriptor struct {
	SessionID string          `json:"session_id"`
	LobbyType string          `json:"lobby_type"`
	Channel   string          `json:"channel"`
	GameType  int64           `json:"game_type"`
	Level     int64           `json:"level"`
	Settings  json.RawMessage `json:"settings"`
	StartedAt time.Time       `json:"started_at"`
}

// Session response type
type Session struct {
	SessionID    string             `json:"session_id"`
	ServerID     uint64             `json:"server_id"`
	RemoteAddr   string             `json:"remote_addr"`
	RegisteredAt time.Time          `json:"registered_at"`
	Starting     bool               `json:"starting"`
	Descriptor   *SessionDescriptor `json:"descriptor"`
}

// StartSessionResult response type
type StartSessionResult struct {
	SessionID string `json:"session_id"`
}

// HealthResult response type
type HealthResult struct {
	Status         string `json:"status"`
	ConnectedPeers int    `json:"connected_peers"`
	GameServers    int    `json:"game_servers"`
}

func (o *Output) printAccount(d AccountDocument) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, d, "", "  "); err != nil {
		_, _ = o.w.Write(d)
		_, _ = fmt.Fprintln(o.w)
		return
	}
	_, _ = fmt.Fprintln(o.w, buf.String())
}

func (o *Output) printIDList(ids IDList) {
	if len(ids) == 0 {
		_, _ = fmt.Fprintln(o.w, "(none)")
		return
	}
	for _, id := range ids {
		_, _ = fmt.Fprintln(o.w, id)
	}
}

func (o *Output) printSession(s Session) {
	_, _ = fmt.Fprintf(o.w, "Session:    %s\n", s.SessionID)
	_, _ = fmt.Fprintf(o.w, "Server:     %d (%s)\n", s.ServerID, s.RemoteAddr)
	_, _ = fmt.Fprintf(o.w, "Registered: %s\n", s.RegisteredAt.Format(time.RFC3339))

	switch {
	case s.Starting:
		_, _ = fmt.Fprintln(o.w, "State:      starting")
	case s.Descriptor == nil:
		_, _ = fmt.Fprintln(o.w, "State:      idle")
	default:
		d := s.Descriptor
		_, _ = fmt.Fprintln(o.w, "State:      running")
		_, _ = fmt.Fprintf(o.w, "  Lobby:    %s\n", d.LobbyType)
		_, _ = fmt.Fprintf(o.w, "  Channel:  %s\n", d.Channel)
		_, _ = fmt.Fprintf(o.w, "  Game:     type %d, level %d\n", d.GameType, d.Level)
		_, _ = fmt.Fprintf(o.w, "  Started:  %s\n", d.StartedAt.Format(time.RFC3339))
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	_, _ = fmt.Fprintf(o.w, "Connected peers: %d\n", h.ConnectedPeers)
	_, _ = fmt.Fprintf(o.w, "Game servers: %d\n", h.GameServers)
}
