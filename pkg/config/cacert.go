// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stacklok/reqauth/pkg/logger"
)

// ValidateCABundle checks that path names a readable PEM file whose first
// block is a parseable certificate. A certificate that is not marked as a CA
// is accepted with a warning.
func ValidateCABundle(path string) error {
	path = filepath.Clean(path)

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("CA certificate file not found or not accessible: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate file: %w", err)
	}

	if err := validateCACertificate(data); err != nil {
		return fmt.Errorf("invalid CA certificate: %w", err)
	}
	return nil
}

func validateCACertificate(data []byte) error {
	block, _ := pem.Decode(data)
	if block == nil {
		return errors.New("failed to decode PEM block")
	}
	if block.Type != "CERTIFICATE" {
		return fmt.Errorf("unexpected PEM block type %q", block.Type)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	if !cert.IsCA {
		logger.Warnf("certificate %q is not marked as a CA", cert.Subject.CommonName)
	}
	return nil
}
