package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/mailbroker/internal/adapter/driving/http"
)

func newStockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stock",
		Short: "Show how many mail units are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httphandler.StockResponse
			if err := a.api.do(cmd.Context(), http.MethodGet, "/api/v1/inventory", nil, &resp); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "available: %d\n", resp.Available)
			return nil
		},
	}
}

func newProvisionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "provision <file>",
		Short: "Load credential lines from a file (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readLines(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				return fmt.Errorf("%s contains no lines", args[0])
			}

			var resp httphandler.ProvisionResponse
			req := httphandler.ProvisionRequest{Lines: lines}
			if err := a.api.do(cmd.Context(), http.MethodPost, "/api/v1/inventory", req, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "added: %d\n", resp.Added)
			_, _ = fmt.Fprintf(out, "available: %d\n", resp.Available)
			for _, rej := range resp.Rejected {
				_, _ = fmt.Fprintf(out, "rejected line %d: %s\n", rej.Line, rej.Reason)
			}
			return nil
		},
	}
}

func newGrantCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <user> <amount>",
		Short: "Add credits to a user (negative amounts correct a grant)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount == 0 {
				return fmt.Errorf("amount must be a non-zero whole number, got %q", args[1])
			}

			var resp httphandler.BalanceResponse
			path := "/api/v1/users/" + url.PathEscape(args[0]) + "/credits"
			if err := a.api.do(cmd.Context(), http.MethodPost, path, httphandler.GrantRequest{Amount: amount}, &resp); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s balance: %d\n", resp.UserID, resp.Balance)
			return nil
		},
	}
}

func newBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user>",
		Short: "Show a user's credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httphandler.BalanceResponse
			path := "/api/v1/users/" + url.PathEscape(args[0]) + "/balance"
			if err := a.api.do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s balance: %d\n", resp.UserID, resp.Balance)
			return nil
		},
	}
}

func newTopUpsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topups",
		Short: "Review pending top-up requests",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List pending requests, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				var resp []httphandler.TopUpResponse
				if err := a.api.do(cmd.Context(), http.MethodGet, "/api/v1/topups", nil, &resp); err != nil {
					return err
				}
				if len(resp) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no pending top-ups")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tUSER\tCREDITS\tPRICE\tSENDER\tTRANSACTION\tCREATED")
				for _, t := range resp {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
						t.ID, t.UserID, t.Credits, t.Price, t.Sender, t.TransactionID, t.CreatedAt)
				}
				return tw.Flush()
			},
		},
		newTopUpDecisionCmd(a, "confirm", "Credit the user for a pending request"),
		newTopUpDecisionCmd(a, "reject", "Close a pending request without crediting"),
	)

	return cmd
}

func newTopUpDecisionCmd(a *app, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httphandler.TopUpDecisionResponse
			path := "/api/v1/topups/" + url.PathEscape(args[0]) + "/" + action
			if err := a.api.do(cmd.Context(), http.MethodPost, path, nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s: %s\n", resp.TopUp.ID, resp.TopUp.Status)
			if action == "confirm" {
				_, _ = fmt.Fprintf(out, "%s balance: %d\n", resp.TopUp.UserID, resp.Balance)
			}
			return nil
		},
	}
}

func newChecksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checks",
		Short: "Manage dispensed check ids",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a check id so it can no longer be verified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/checks/" + url.PathEscape(args[0])
			if err := a.api.do(cmd.Context(), http.MethodDelete, path, nil, nil); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	})

	return cmd
}

// readLines reads every line of path, or of stdin when path is "-".
func readLines(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
