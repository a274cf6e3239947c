// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package wsse builds WS-Security UsernameToken headers.
package wsse

import (
	"crypto/rand"
	"crypto/sha1" // #nosec G505 - SHA-1 is mandated by the UsernameToken profile
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// HeaderName is the header the token is sent in.
const HeaderName = "X-WSSE"

// createdLayout is ISO 8601 UTC with milliseconds.
const createdLayout = "2006-01-02T15:04:05.000Z"

// Header builds the UsernameToken value for the given nonce and time.
// PasswordDigest is base64 of the hex SHA-1 of nonce+created+password.
func Header(username, password string, now time.Time, nonce string) string {
	created := now.UTC().Format(createdLayout)
	sum := sha1.Sum([]byte(nonce + created + password)) // #nosec G401 - SHA-1 is mandated by the UsernameToken profile
	digest := base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])))
	return fmt.Sprintf(`UsernameToken Username="%s", PasswordDigest="%s", Nonce="%s", Created="%s"`,
		username, digest, nonce, created)
}

// NewHeader builds a header with a fresh nonce and the current time.
func NewHeader(username, password string) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}
	return Header(username, password, time.Now(), nonce), nil
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate wsse nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
