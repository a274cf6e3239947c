// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"net/url"
	"strings"
)

// SetQueryParam sets key to value on u. Existing entries for key are
// removed; every other entry keeps its position and original encoding.
func SetQueryParam(u *url.URL, key, value string) {
	var kept []string
	if u.RawQuery != "" {
		for _, part := range strings.Split(u.RawQuery, "&") {
			name, _, _ := strings.Cut(part, "=")
			if decoded, err := url.QueryUnescape(name); err == nil && decoded == key {
				continue
			}
			kept = append(kept, part)
		}
	}
	kept = append(kept, encodeQueryParam(key, value))
	u.RawQuery = strings.Join(kept, "&")
	u.ForceQuery = false
}

// AddQueryParam appends key=value to u's query without re-encoding the
// entries already there.
func AddQueryParam(u *url.URL, key, value string) {
	param := encodeQueryParam(key, value)
	if u.RawQuery == "" {
		u.RawQuery = param
	} else {
		u.RawQuery += "&" + param
	}
	u.ForceQuery = false
}

func encodeQueryParam(key, value string) string {
	return url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
