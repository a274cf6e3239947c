// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package awsv4

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// maxPayloadSize is the maximum request body size (10 MB) for SigV4 signing.
const maxPayloadSize = 10 * 1024 * 1024

// emptyPayloadHash is the SHA-256 of an empty body.
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Signer signs HTTP requests using AWS Signature Version 4.
//
// Signing must happen after every other header change, as any later
// modification invalidates the signature.
type Signer struct {
	signer  *v4.Signer
	region  string
	service string
	now     func() time.Time
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithClock overrides the signing time source.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

// NewSigner creates a SigV4 signer for service in region.
func NewSigner(region, service string, opts ...SignerOption) (*Signer, error) {
	if region == "" {
		return nil, ErrMissingRegion
	}
	if service == "" {
		return nil, ErrMissingService
	}
	s := &Signer{
		signer:  v4.NewSigner(),
		region:  region,
		service: service,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Region returns the signing region.
func (s *Signer) Region() string { return s.region }

// Service returns the signing service name.
func (s *Signer) Service() string { return s.service }

// SignRequest signs req in place, adding Authorization, X-Amz-Date and,
// for temporary credentials, X-Amz-Security-Token. The body is read,
// hashed and replaced so the request can still be sent.
func (s *Signer) SignRequest(ctx context.Context, req *http.Request, creds aws.Credentials) error {
	payloadHash, bodyBytes, err := hashPayload(req)
	if err != nil {
		return fmt.Errorf("failed to hash request payload: %w", err)
	}

	if bodyBytes != nil {
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		req.ContentLength = int64(len(bodyBytes))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
	}

	if err := s.signer.SignHTTP(ctx, creds, req, payloadHash, s.service, s.region, s.now()); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	return nil
}

// hashPayload reads and hashes the request body with SHA-256, returning
// the body so the consumed reader can be replaced.
func hashPayload(req *http.Request) (string, []byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return emptyPayloadHash, nil, nil
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(req.Body, maxPayloadSize+1))
	if err != nil {
		return "", nil, err
	}
	if len(bodyBytes) > maxPayloadSize {
		return "", nil, fmt.Errorf("request body exceeds maximum size of %d bytes", maxPayloadSize)
	}
	if err := req.Body.Close(); err != nil {
		return "", nil, err
	}

	hash := sha256.Sum256(bodyBytes)
	return hex.EncodeToString(hash[:]), bodyBytes, nil
}
