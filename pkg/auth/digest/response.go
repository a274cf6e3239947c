// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package digest

import (
	"crypto/md5" // #nosec G501 - MD5 is mandated by the Digest scheme
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// nonceCount is fixed: every challenge authenticates exactly one request.
const nonceCount = "00000001"

// Credentials are the digest username and password.
type Credentials struct {
	Username string
	Password string
}

// String implements fmt.Stringer, redacting the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %s, Password: [REDACTED]}", c.Username)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s)) // #nosec G401 - MD5 is mandated by the Digest scheme
	return hex.EncodeToString(sum[:])
}

// Response computes the digest response value. uri is the request target
// including the query string.
func Response(method, uri string, ch *Challenge, creds Credentials, cnonce string) string {
	ha1 := md5Hex(creds.Username + ":" + ch.Realm + ":" + creds.Password)
	ha2 := md5Hex(method + ":" + uri)
	return md5Hex(strings.Join([]string{ha1, ch.Nonce, nonceCount, cnonce, "auth", ha2}, ":"))
}

// Authorization builds the Authorization header value answering ch for a
// request to u.
func Authorization(method string, u *url.URL, ch *Challenge, creds Credentials, cnonce string) string {
	uri := u.RequestURI()
	fields := []string{
		quotedField("username", creds.Username),
		quotedField("realm", ch.Realm),
		quotedField("nonce", ch.Nonce),
		quotedField("uri", uri),
		`qop="auth"`,
		`algorithm="MD5"`,
		quotedField("response", Response(method, uri, ch, creds, cnonce)),
		`nc="` + nonceCount + `"`,
		quotedField("cnonce", cnonce),
	}
	if ch.Opaque != "" {
		fields = append(fields, quotedField("opaque", ch.Opaque))
	}
	return "Digest " + strings.Join(fields, ", ")
}

func quotedField(name, value string) string {
	return name + `="` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value) + `"`
}
