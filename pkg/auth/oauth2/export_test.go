// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth2

// WithVerifierGenerator exposes the PKCE verifier seam to external tests.
var WithVerifierGenerator = withVerifierGenerator
