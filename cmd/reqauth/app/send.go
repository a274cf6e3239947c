// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacklok/reqauth/pkg/auth"
)

// sensitiveHeaders are masked in verbose output.
var sensitiveHeaders = []string{"Authorization", "Proxy-Authorization", "X-Wsse", "X-Amz-Security-Token"}

func newSendCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "send <request>",
		Short: "Send a request from the auth file with its auth applied",
		Long: `Build the named request, apply its auth (resolving inherit against the
collection), send it and print the response status and body.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			r, err := e.loadRequest(args[0])
			if err != nil {
				return err
			}
			prepared := r.request.Prepare()
			if err := e.builder.Apply(ctx, prepared, r.request.Auth, r.file.Collection); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if verbose {
				fmt.Fprintf(out, "> %s %s\n", prepared.Method, prepared.URL)
				printHeaders(out, "> ", prepared.Header)
				if prepared.OAuth2 != nil {
					fmt.Fprintf(out, "* oauth2 token source: %s\n", prepared.OAuth2.Source)
				}
			}

			resp, err := auth.Send(ctx, e.client, prepared)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			fmt.Fprintf(out, "%s %s\n", resp.Proto, resp.Status)
			if verbose {
				printHeaders(out, "< ", resp.Header)
			}
			if _, err := io.Copy(out, resp.Body); err != nil {
				return fmt.Errorf("failed to read response body: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print request and response headers")
	return cmd
}

func printHeaders(w io.Writer, prefix string, h http.Header) {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		value := strings.Join(h.Values(name), ", ")
		if slices.Contains(sensitiveHeaders, http.CanonicalHeaderKey(name)) {
			value = "[REDACTED]"
		}
		fmt.Fprintf(w, "%s%s: %s\n", prefix, name, value)
	}
}
