// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"errors"
	"net/http"

	"github.com/stacklok/toolhive-core/httperr"
)

var (
	// ErrNotFound is returned when no credential is stored under a key.
	ErrNotFound = httperr.WithCode(
		errors.New("credential not found"),
		http.StatusNotFound,
	)

	// ErrMissingAccessToken is returned when saving a credential without an access token.
	ErrMissingAccessToken = httperr.WithCode(
		errors.New("credential has no access token"),
		http.StatusUnprocessableEntity,
	)
)
