// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
	"github.com/stacklok/reqauth/pkg/storage"
)

func newCredsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Inspect and clear cached credentials",
		Long:  "The creds command provides subcommands to list and clear credentials held in the credential store.",
	}
	cmd.AddCommand(newCredsListCmd(), newCredsClearCmd())
	return cmd
}

func newCredsListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached credentials in the current scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			filter := storage.ListFilter{ScopeID: e.settings.Scope}
			if all {
				filter.ScopeID = ""
			}
			entries, err := e.store.List(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list credentials: %w", err)
			}
			return renderCredentialsTable(cmd.OutOrStdout(), entries, time.Now())
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "List credentials from every scope")
	return cmd
}

func newCredsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear every cached credential in the current scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := storage.DeleteScope(ctx, e.store, e.settings.Scope)
			if err != nil {
				return fmt.Errorf("failed to clear credentials: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d credential(s) from scope %s\n", n, e.settings.Scope)
			return nil
		},
	}
}

func renderCredentialsTable(w io.Writer, entries []storage.Entry, now time.Time) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No cached credentials found.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Options(
		tablewriter.WithHeader([]string{"Scope", "URL", "Credentials ID", "Token Type", "Expires", "Status"}),
		tablewriter.WithRendition(
			tw.Rendition{
				Borders: tw.Border{
					Left:   tw.State(1),
					Top:    tw.State(1),
					Right:  tw.State(1),
					Bottom: tw.State(1),
				},
			},
		),
		tablewriter.WithAlignment(tw.MakeAlign(6, tw.AlignLeft)),
	)

	for _, entry := range entries {
		cred := entry.Credential
		expires := "never"
		tokenType := ""
		if cred != nil {
			tokenType = cred.TokenType
			if !cred.ExpiresAt.IsZero() {
				expires = cred.ExpiresAt.UTC().Format(time.RFC3339)
			}
		}
		status := "valid"
		if credentials.IsExpired(cred, now) {
			status = "expired"
		}
		if err := table.Append([]string{
			entry.Key.ScopeID,
			entry.Key.URL,
			entry.Key.CredentialsID,
			tokenType,
			expires,
			status,
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
