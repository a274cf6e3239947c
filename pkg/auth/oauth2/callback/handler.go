// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package callback

import (
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/stacklok/reqauth/pkg/auth/oauth2"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/logger"
)

type handler struct {
	req     oauth2.AuthorizationRequest
	results chan<- outcome
}

// deliver hands the first outcome to Authorize; later ones are dropped.
func (h *handler) deliver(out outcome) {
	select {
	case h.results <- out:
	default:
	}
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	writeErrorPage(w, err)
	h.deliver(outcome{err: err})
}

func (h *handler) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	implicit := h.req.ResponseType == "token"

	// Implicit grant values arrive in the fragment, which only the browser
	// sees. Serve a page that replays them as a query.
	if implicit && !query.Has(fragmentParam) && !query.Has("access_token") && !query.Has("error") {
		writeRelayPage(w)
		return
	}

	if code := query.Get("error"); code != "" {
		authErr := &oauth2.AuthorizationError{
			Code:        code,
			Description: query.Get("error_description"),
			URI:         query.Get("error_uri"),
		}
		h.fail(w, authErr)
		return
	}

	if h.req.State != "" && query.Get("state") != h.req.State {
		h.fail(w, autherrors.NewAuthorizationError("invalid state parameter", nil))
		return
	}

	if implicit {
		tokens := oauth2.ImplicitTokensFromValues(query)
		if tokens.AccessToken == "" {
			h.fail(w, autherrors.NewAuthorizationError("missing access token in redirect", nil))
			return
		}
		writeSuccessPage(w)
		h.deliver(outcome{result: &oauth2.AuthorizationResult{Implicit: tokens}})
		return
	}

	code := query.Get("code")
	if code == "" {
		h.fail(w, autherrors.NewAuthorizationError("missing authorization code", nil))
		return
	}
	writeSuccessPage(w)
	h.deliver(outcome{result: &oauth2.AuthorizationResult{Code: code}})
}

func (*handler) root(w http.ResponseWriter, _ *http.Request) {
	writePage(w, http.StatusOK, "reqauth OAuth", "info",
		"OAuth callback server is running. Please complete the authentication flow in your browser.")
}

// setSecurityHeaders sets common security headers for all responses
func setSecurityHeaders(w http.ResponseWriter, csp string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Security-Policy", csp)
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
        .container { max-width: 600px; margin: 0 auto; }
        .message { padding: 20px; border-radius: 5px; margin: 20px 0; }
        .info { background-color: #e7f3ff; border: 1px solid #b3d9ff; color: #0066cc; }
        .success { background-color: #e7f6e7; border: 1px solid #b3e6b3; color: #006600; }
        .error { background-color: #ffe7e7; border: 1px solid #ffb3b3; color: #cc0000; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <div class="message %s">
            <p>%s</p>
        </div>
    </div>
</body>
</html>`

func writePage(w http.ResponseWriter, status int, title, class, message string) {
	setSecurityHeaders(w, "default-src 'none'; style-src 'unsafe-inline';")
	w.WriteHeader(status)
	page := fmt.Sprintf(pageTemplate, html.EscapeString(title), html.EscapeString(title), class, html.EscapeString(message))
	if _, err := w.Write([]byte(page)); err != nil {
		logger.Warnf("Failed to write HTML content: %v", err)
	}
}

func writeSuccessPage(w http.ResponseWriter) {
	writePage(w, http.StatusOK, "Authentication Successful", "success",
		"You have successfully authenticated. You can now close this window and return to the terminal.")
}

func writeErrorPage(w http.ResponseWriter, err error) {
	msg := err.Error()
	var authErr *oauth2.AuthorizationError
	if errors.As(err, &authErr) && authErr.Description != "" {
		msg = authErr.Code + ": " + authErr.Description
	}
	writePage(w, http.StatusBadRequest, "Authentication Failed", "error", msg)
}

const relayPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Completing sign-in</title></head>
<body>
<p>Completing sign-in...</p>
<script>
var h = window.location.hash.substring(1);
window.location.replace(window.location.pathname + "?" + h + (h ? "&" : "") + "` + fragmentParam + `=1");
</script>
</body>
</html>`

func writeRelayPage(w http.ResponseWriter) {
	setSecurityHeaders(w, "default-src 'none'; script-src 'unsafe-inline';")
	if _, err := w.Write([]byte(relayPage)); err != nil {
		logger.Warnf("Failed to write HTML content: %v", err)
	}
}
