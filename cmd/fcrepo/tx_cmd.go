package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const envTxSession = "FCREPO_TX_SESSION"

// newTxCommand drives the repository transaction sub-protocol directly, for
// scripts that span a unit of work over several invocations. begin prints
// the session id; commit and rollback take it from --session or the
// FCREPO_TX_SESSION environment variable.
func newTxCommand(cfg *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tx",
		Short:        "Begin, commit, or roll back repository transactions",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newTxBeginCommand(cfg),
		newTxCompleteCommand(cfg, "commit", "Commit a transaction"),
		newTxCompleteCommand(cfg, "rollback", "Roll back a transaction"),
	)
	return cmd
}

func newTxBeginCommand(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:          "begin",
		Short:        "Begin a transaction and print its session id",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := cfg.txnManager()
			if err != nil {
				return err
			}
			tx, err := tm.Begin(commandContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, tx.SessionID())
			return nil
		},
	}
}

func newTxCompleteCommand(cfg *cliConfig, op, short string) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:          op,
		Short:        short,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := cfg.txnManager()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(session)
			if id == "" {
				id = strings.TrimSpace(os.Getenv(envTxSession))
			}
			if id == "" {
				return fmt.Errorf("session required (specify --session or export %s)", envTxSession)
			}
			tx := tm.Resume(id)
			ctx := commandContext(cmd)
			if op == "commit" {
				return tm.Commit(ctx, tx)
			}
			return tm.Rollback(ctx, tx)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "transaction session id (default $"+envTxSession+")")
	return cmd
}
