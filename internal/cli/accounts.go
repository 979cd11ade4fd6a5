package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Account management commands",
	}

	cmd.AddCommand(newAccountListCmd())
	cmd.AddCommand(newAccountGetCmd())
	cmd.AddCommand(newAccountPutCmd())
	cmd.AddCommand(newAccountMergeCmd())
	cmd.AddCommand(newAccountDeleteCmd())

	return cmd
}

func newAccountListCmd() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored account ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result IDList

			if err := client.Get("/accounts?"+pageQuery(page, pageSize), &result); err != nil {
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

func newAccountGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get an account document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result AccountDocument

			if err := client.Get("/accounts/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newAccountPutCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "put [document]",
		Short: "Store a full account document",
		Long: `Store a full account document. The account id is taken from
profile.server.xplatformid, or the top-level "id" field.

The document is read from the argument, from --file, or from stdin when
--file is "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readDocument(cmd, args, file)
			if err != nil {
				return err
			}

			var result AccountDocument
			if err := client.Post("/accounts", body, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the document from a file (- for stdin)")

	return cmd
}

func newAccountMergeCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "merge <id> [patch]",
		Short: "Merge a partial document into an account",
		Long: `Merge a partial document into a stored account. Objects merge field by
field; arrays, scalars and nulls replace the stored value.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readDocument(cmd, args[1:], file)
			if err != nil {
				return err
			}

			var result AccountDocument
			if err := client.Post("/accounts/"+url.PathEscape(args[0]), body, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the patch from a file (- for stdin)")

	return cmd
}

func newAccountDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result AccountDocument

			if err := client.Delete("/accounts/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			if cfg.Verbose {
				out.Print(result)
			}
			out.PrintMessage(fmt.Sprintf("Deleted account %s", args[0]))
			return nil
		},
	}
}

// readDocument takes a JSON document from the single positional argument or from file
func readDocument(cmd *cobra.Command, args []string, file string) (json.RawMessage, error) {
	var data []byte
	switch {
	case len(args) > 0 && file != "":
		return nil, errors.New("pass the document as an argument or with --file, not both")
	case len(args) > 0:
		data = []byte(args[0])
	case file == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		data = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		data = b
	default:
		return nil, errors.New("no document given")
	}

	if !json.Valid(data) {
		return nil, errors.New("document is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func pageQuery(page, pageSize int) string {
	q := url.Values{}
	q.Set("pageNumber", fmt.Sprint(page))
	q.Set("pageSize", fmt.Sprint(pageSize))
	return q.Encode()
}
