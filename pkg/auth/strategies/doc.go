// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package strategies implements one auth strategy per auth mode. Each
// strategy validates its slice of a types.AuthConfig and applies it to a
// types.PreparedRequest, either by setting headers or by recording a hook
// that the send pipeline consumes.
package strategies
