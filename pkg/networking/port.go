// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package networking provides HTTP client construction and local port
// helpers for the OAuth2 callback listener.
package networking

import (
	"fmt"
	"math/rand/v2"
	"net"
)

const (
	// MinPort is the minimum port number to use
	MinPort = 10000
	// MaxPort is the maximum port number to use
	MaxPort = 65535
	// MaxAttempts is the maximum number of attempts to find an available port
	MaxAttempts = 10
)

// IsAvailable checks if a TCP port is free on the loopback interface.
func IsAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// FindAvailable finds an available port, returning 0 if none was found.
func FindAvailable() int {
	for range MaxAttempts {
		port := rand.IntN(MaxPort-MinPort) + MinPort // #nosec G404 - port selection is not security sensitive
		if IsAvailable(port) {
			return port
		}
	}

	// Let the kernel pick one.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// FindOrUsePort returns port if it is free, or an available port when port is 0.
func FindOrUsePort(port int) (int, error) {
	if port == 0 {
		if found := FindAvailable(); found != 0 {
			return found, nil
		}
		return 0, fmt.Errorf("could not find an available port")
	}
	if port < 0 || port > MaxPort {
		return 0, fmt.Errorf("invalid port %d", port)
	}
	if !IsAvailable(port) {
		return 0, fmt.Errorf("port %d is already in use", port)
	}
	return port, nil
}
