package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Game server session commands",
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionStartCmd())

	return cmd
}

func newSessionListCmd() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered game server sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result IDList

			if err := client.Get("/sessions?"+pageQuery(page, pageSize), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "Page size")

	return cmd
}

func newSessionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a registered game server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Session

			if err := client.Get("/sessions/"+args[0], &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

// startSessionRequest mirrors the API request body
type startSessionRequest struct {
	LobbyType int             `json:"lobby_type"`
	Channel   string          `json:"channel"`
	GameType  int64           `json:"game_type"`
	Level     int64           `json:"level"`
	Settings  json.RawMessage `json:"settings,omitempty"`
}

func newSessionStartCmd() *cobra.Command {
	var (
		req      startSessionRequest
		settings string
	)

	cmd := &cobra.Command{
		Use:   "start <session-id>",
		Short: "Start a session on a registered game server",
		Long: `Ask the game server registered under <session-id> to start a session.

Lobby types: 0 public, 1 private, 2 matchmaking. The channel is a uuid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if settings != "" {
				if !json.Valid([]byte(settings)) {
					return errors.New("--settings is not valid JSON")
				}
				req.Settings = json.RawMessage(settings)
			}

			var result StartSessionResult
			if err := client.Post("/sessions/"+args[0], req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&req.LobbyType, "lobby-type", 0, "Lobby type")
	cmd.Flags().StringVar(&req.Channel, "channel", "", "Channel uuid")
	cmd.Flags().Int64Var(&req.GameType, "game-type", 0, "Game type")
	cmd.Flags().Int64Var(&req.Level, "level", 0, "Level")
	cmd.Flags().StringVar(&settings, "settings", "", "Session settings as a JSON object")
	_ = cmd.MarkFlagRequired("channel")

	return cmd
}
