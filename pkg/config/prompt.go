// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/stacklok/reqauth/pkg/auth/types"
)

// PromptValue marks a secret that is asked for interactively.
const PromptValue = "prompt"

// Prompter reads a secret for label.
type Prompter func(label string) (string, error)

// TerminalPrompter reads secrets from the terminal without echo.
func TerminalPrompter(out io.Writer) Prompter {
	return func(label string) (string, error) {
		fd := int(os.Stdin.Fd()) // #nosec G115 - file descriptors fit in int
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("%s is set to %q but stdin is not a terminal", label, PromptValue)
		}
		fmt.Fprintf(out, "%s: ", label)
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", label, err)
		}
		return string(secret), nil
	}
}

// ResolvePrompts replaces every secret in cfg whose value is PromptValue
// with the prompter's answer. Only the block matching cfg.Mode is visited.
func ResolvePrompts(cfg *types.AuthConfig, prompt Prompter) error {
	if cfg == nil {
		return nil
	}
	for _, s := range secretFields(cfg) {
		if *s.value != PromptValue {
			continue
		}
		answer, err := prompt(s.label)
		if err != nil {
			return err
		}
		*s.value = answer
	}
	return nil
}

type secretField struct {
	label string
	value *string
}

func secretFields(cfg *types.AuthConfig) []secretField {
	switch cfg.Mode {
	case types.ModeBasic:
		if cfg.Basic != nil {
			return []secretField{{"basic password", &cfg.Basic.Password}}
		}
	case types.ModeDigest:
		if cfg.Digest != nil {
			return []secretField{{"digest password", &cfg.Digest.Password}}
		}
	case types.ModeWSSE:
		if cfg.WSSE != nil {
			return []secretField{{"wsse password", &cfg.WSSE.Password}}
		}
	case types.ModeBearer:
		if cfg.Bearer != nil {
			return []secretField{{"bearer token", &cfg.Bearer.Token}}
		}
	case types.ModeAPIKey:
		if cfg.APIKey != nil {
			return []secretField{{"api key", &cfg.APIKey.Value}}
		}
	case types.ModeAWSV4:
		if cfg.AWSV4 != nil {
			return []secretField{{"aws secret access key", &cfg.AWSV4.SecretAccessKey}}
		}
	case types.ModeOAuth2:
		if cfg.OAuth2 != nil {
			return []secretField{
				{"oauth2 client secret", &cfg.OAuth2.ClientSecret},
				{"oauth2 password", &cfg.OAuth2.Password},
			}
		}
	}
	return nil
}
