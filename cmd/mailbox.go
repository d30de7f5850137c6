package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	mailboxAddress string
	mailboxName    string
)

var mailboxCmd = &cobra.Command{
	Use:   "mailbox",
	Short: "Manage monitored mailboxes",
}

var mailboxAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a mailbox for syncing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		mb, err := st.CreateMailbox(ctx, mailboxAddress, mailboxName)
		if err != nil {
			return eris.Wrap(err, "create mailbox")
		}

		zap.L().Info("mailbox registered",
			zap.Int64("id", mb.ID),
			zap.String("address", mb.Address),
		)
		return nil
	},
}

var mailboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored mailboxes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		mailboxes, err := st.ListMailboxes(ctx, false)
		if err != nil {
			return eris.Wrap(err, "list mailboxes")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mailboxes)
	},
}

func init() {
	mailboxAddCmd.Flags().StringVar(&mailboxAddress, "address", "", "mailbox email address (required)")
	mailboxAddCmd.Flags().StringVar(&mailboxName, "name", "", "display name")
	_ = mailboxAddCmd.MarkFlagRequired("address")

	mailboxCmd.AddCommand(mailboxAddCmd)
	mailboxCmd.AddCommand(mailboxListCmd)
	rootCmd.AddCommand(mailboxCmd)
}
