package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/partsdesk-backend/internal/users"
)

func newUsersCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage operator and shop accounts",
	}
	cmd.AddCommand(
		newUsersCreateCmd(open),
		newUsersListCmd(open),
		newUsersPasswordCmd(open),
		newUsersDeactivateCmd(open),
	)
	return cmd
}

func newUsersCreateCmd(open opener) *cobra.Command {
	var input users.CreateUserInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			user, err := e.services.Users.Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.Username, user.Role, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input.Username, "username", "u", "", "login name (required)")
	cmd.Flags().StringVarP(&input.Password, "password", "p", "", "initial password (required)")
	cmd.Flags().StringVarP(&input.Role, "role", "r", "employee", "admin, employee or customer")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUsersListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			rows, err := e.services.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tROLE\tACTIVE")
			for _, u := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", u.ID, u.Username, u.Role, u.IsActive)
			}
			return tw.Flush()
		},
	}
}

func newUsersPasswordCmd(open opener) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "set-password <user-id>",
		Short: "Replace an account's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			return e.services.Users.SetPassword(cmd.Context(), id, password)
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "new password (required)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUsersDeactivateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <user-id>",
		Short: "Block an account from logging in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			return e.services.Users.Deactivate(cmd.Context(), id)
		},
	}
}
