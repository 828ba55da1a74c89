package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"cmms-backend/internal/model"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserAddCmd(), newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		password    string
		role        string
		permissions []string
		fullName    string
	)

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Register an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, log.New(os.Stderr, "cmms-backend ", log.LstdFlags))
			if err != nil {
				return err
			}
			profile := model.User{Role: model.Role(role), FullName: fullName}
			for _, p := range permissions {
				profile.Permissions = append(profile.Permissions, model.Permission(p))
			}
			u, err := a.users.Register(ctx, args[0], password, profile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.Username, u.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Initial password (required)")
	cmd.Flags().StringVar(&role, "role", string(model.RoleViewer), "Role: admin, editor or viewer")
	cmd.Flags().StringSliceVar(&permissions, "permission", nil, "Extra permission, repeatable")
	cmd.Flags().StringVar(&fullName, "full-name", "", "Display name")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), log.New(os.Stderr, "cmms-backend ", log.LstdFlags))
			if err != nil {
				return err
			}
			for _, u := range a.users.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%v\n", u.Username, u.Role, u.Permissions)
			}
			return nil
		},
	}
}
