package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

const defaultAddr = "http://127.0.0.1:8080"

type app struct {
	addr  string
	token string
	api   *apiClient
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "mailbrokerctl",
		Short:        "Operate a running mailbroker service",
		Long:         "mailbrokerctl provisions inventory, adjusts balances, decides top-up requests and removes check ids through the mailbroker operator API.",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if a.token == "" {
				return errors.New("operator token is required: pass --token or set MAILBROKER_ADMIN_TOKEN")
			}
			a.api = newAPIClient(a.addr, a.token)
			return nil
		},
	}

	addr := os.Getenv("MAILBROKER_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	rootCmd.PersistentFlags().StringVar(&a.addr, "addr", addr, "service base URL (env MAILBROKER_ADDR)")
	rootCmd.PersistentFlags().StringVar(&a.token, "token", os.Getenv("MAILBROKER_ADMIN_TOKEN"), "operator bearer token (env MAILBROKER_ADMIN_TOKEN)")

	rootCmd.AddCommand(
		newStockCmd(a),
		newProvisionCmd(a),
		newGrantCmd(a),
		newBalanceCmd(a),
		newTopUpsCmd(a),
		newChecksCmd(a),
	)

	return rootCmd
}
