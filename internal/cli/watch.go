package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/echorelay/internal/model"
)

func newWatchCmd() *cobra.Command {
	var (
		jsonOutput bool
		count      int
	)

	cmd := &cobra.Command{
		Use:   "watch <account-id>",
		Short: "Log in as an account and stream the events pushed to it",
		Long: `Connect to the relay's peer endpoint, log in as the given account and
print every event the relay pushes, such as profile_updated and
requirement_cleared after account writes.

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseXPlatformID(args[0])
			if err != nil {
				return err
			}
			return watchAccount(cmd, id, jsonOutput, count)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many pushed events (0 = until disconnected)")

	return cmd
}

// watchHeader carries the admin key on the websocket handshake
func watchHeader(apiKey string) http.Header {
	header := http.Header{}
	if apiKey != "" {
		header.Set("X-Api-Key", apiKey)
	}
	return header
}

// WatchEvent is one event received while watching
type WatchEvent struct {
	Time    time.Time       `json:"time"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func watchAccount(cmd *cobra.Command, id model.XPlatformID, jsonOutput bool, count int) error {
	wsURL, err := websocketURL(cfg.ServerURL, "/ws/login")
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, watchHeader(cfg.APIKey))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return errors.New("connection refused: relay requires a valid --api-key")
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Unblock the read loop on interrupt
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	login, err := model.NewEnvelope(model.EventLogin, "watch", model.LoginPayload{UserID: id})
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(login); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	w := cmd.OutOrStdout()
	received := 0
	for {
		var env model.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				if !jsonOutput {
					_, _ = fmt.Fprintln(w, "Disconnected")
				}
				return nil
			}
			return fmt.Errorf("stream error: %w", err)
		}

		switch env.Type {
		case model.EventLoginSuccess:
			if !jsonOutput {
				_, _ = fmt.Fprintf(w, "Watching %s\n", id)
			}
			continue
		case model.EventError:
			var payload model.ErrorPayload
			_ = env.Decode(&payload)
			return errors.New(payload.Message)
		}

		printEvent(w, env, jsonOutput)
		received++
		if count > 0 && received >= count {
			return nil
		}
	}
}

func printEvent(w io.Writer, env model.Envelope, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		evt := WatchEvent{Time: now, Type: string(env.Type), Payload: env.Payload}
		data, _ := json.Marshal(evt)
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	timestamp := now.Format("2006-01-02 15:04:05")
	display := string(env.Payload)
	if len(display) > 100 {
		display = display[:100] + "..."
	}
	_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, env.Type, display)
}

func websocketURL(serverURL, path string) (string, error) {
	base := strings.TrimSuffix(serverURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + path, nil
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + path, nil
	default:
		return "", fmt.Errorf("unsupported server URL %q", serverURL)
	}
}
