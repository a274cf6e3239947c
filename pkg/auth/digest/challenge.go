// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package digest implements HTTP Digest authentication (MD5, qop=auth) as a
// single-retry http.RoundTripper.
package digest

import (
	"fmt"
	"strings"

	autherrors "github.com/stacklok/reqauth/pkg/errors"
)

// Challenge is a parsed WWW-Authenticate: Digest header.
type Challenge struct {
	Realm     string
	Nonce     string
	QOP       string
	Opaque    string
	Algorithm string
	// Params holds every parameter, keys lower-cased.
	Params map[string]string
}

// IsDigestChallenge reports whether a WWW-Authenticate value is a Digest challenge.
func IsDigestChallenge(header string) bool {
	return len(header) >= 6 && strings.EqualFold(header[:6], "digest")
}

// ParseChallenge parses a Digest challenge. It fails when realm or nonce is
// missing, or when an algorithm other than MD5 is requested.
func ParseChallenge(header string) (*Challenge, error) {
	header = strings.TrimSpace(header)
	if IsDigestChallenge(header) {
		header = strings.TrimSpace(header[6:])
	}

	params := map[string]string{}
	for _, part := range splitParams(header) {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		params[name] = unquote(strings.TrimSpace(value))
	}

	ch := &Challenge{
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		QOP:       params["qop"],
		Opaque:    params["opaque"],
		Algorithm: params["algorithm"],
		Params:    params,
	}
	if ch.Realm == "" {
		return nil, autherrors.NewMalformedChallengeError("digest challenge has no realm", nil)
	}
	if ch.Nonce == "" {
		return nil, autherrors.NewMalformedChallengeError("digest challenge has no nonce", nil)
	}
	if ch.Algorithm != "" && !strings.EqualFold(ch.Algorithm, "MD5") {
		return nil, autherrors.NewUnsupportedDigestAlgorithmError(
			fmt.Sprintf("digest algorithm %q is not supported", ch.Algorithm), nil)
	}
	if ch.QOP == "" {
		ch.QOP = "auth"
	}
	return ch, nil
}

// splitParams splits on commas outside quoted strings.
func splitParams(s string) []string {
	var (
		parts   []string
		current strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quoted:
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			parts = append(parts, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
		return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(v)
	}
	return v
}
