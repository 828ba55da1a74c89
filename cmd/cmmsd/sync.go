package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"cmms-backend/internal/workbook"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Move the workbook between the local copy and the remote",
	}
	cmd.AddCommand(newSyncPullCmd(), newSyncPushCmd())
	return cmd
}

func newSyncPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Replace the local workbook with the remote copy",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), log.New(os.Stderr, "cmms-backend ", log.LstdFlags))
			if err != nil {
				return err
			}
			if err := a.sync.Fetch(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pulled %s into %s\n", a.cfg.Remote.Path, a.cfg.Workbook.LocalPath)
			return nil
		},
	}
}

func newSyncPushCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Commit the local workbook to the remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), log.New(os.Stderr, "cmms-backend ", log.LstdFlags))
			if err != nil {
				return err
			}
			data, err := os.ReadFile(a.cfg.Workbook.LocalPath)
			if err != nil {
				return fmt.Errorf("failed to read local workbook: %w", err)
			}
			wb, err := workbook.Load(data, a.registry)
			if err != nil {
				return err
			}
			res, err := a.sync.Push(cmd.Context(), wb, message)
			if err != nil {
				return err
			}
			if !res.RemoteUpdated {
				return fmt.Errorf("no remote credential configured; nothing was committed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s (%s)\n", a.cfg.Remote.Path, res.State)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "Update machines workbook", "Commit message")
	return cmd
}
