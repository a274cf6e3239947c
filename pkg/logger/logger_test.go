// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-core/env/mocks"
	"github.com/stacklok/toolhive-core/logging"
)

func TestUnstructuredLogsWithEnv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{"unset", "", true},
		{"true", "true", true},
		{"false", "false", false},
		{"garbage", "yes please", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockEnv := mocks.NewMockReader(ctrl)
			mockEnv.EXPECT().Getenv(UnstructuredLogsEnvVar).Return(tt.envValue)

			assert.Equal(t, tt.expected, unstructuredLogsWithEnv(mockEnv))
		})
	}
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := singleton.Load()
	singleton.Store(logging.New(logging.WithOutput(&buf), logging.WithLevel(slog.LevelDebug)))
	t.Cleanup(func() { singleton.Store(prev) })
	return &buf
}

func TestLogHelpers(t *testing.T) { //nolint:paralleltest // mutates singleton
	tests := []struct {
		name     string
		logFn    func()
		contains string
	}{
		{"Debug", func() { Debug("cache miss") }, "cache miss"},
		{"Debugf", func() { Debugf("fetching %s", "token") }, "fetching token"},
		{"Debugw", func() { Debugw("refresh", "grant_type", "password") }, "grant_type"},
		{"Info", func() { Info("authorized") }, "authorized"},
		{"Infof", func() { Infof("opened %d", 1) }, "opened 1"},
		{"Infow", func() { Infow("callback", "port", 8080) }, "port"},
		{"Warn", func() { Warn("store unavailable") }, "store unavailable"},
		{"Warnf", func() { Warnf("save failed: %v", "boom") }, "save failed: boom"},
		{"Warnw", func() { Warnw("digest rejected", "reason", "md5-sess") }, "md5-sess"},
		{"Error", func() { Error("fatal config") }, "fatal config"},
		{"Errorf", func() { Errorf("bad %s", "url") }, "bad url"},
		{"Errorw", func() { Errorw("send failed", "status", 500) }, "status"},
	}

	for _, tc := range tests { //nolint:paralleltest // mutates singleton
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLogs(t)
			tc.logFn()
			assert.Contains(t, buf.String(), tc.contains)
		})
	}
}

func TestGetAndSet(t *testing.T) { //nolint:paralleltest // mutates singleton
	buf := captureLogs(t)

	got := Get()
	require.NotNil(t, got)
	got.Info("through get")
	assert.Contains(t, buf.String(), "through get")

	var other bytes.Buffer
	Set(logging.New(logging.WithOutput(&other)))
	Info("through set")
	assert.Contains(t, other.String(), "through set")
	assert.NotContains(t, buf.String(), "through set")
}

func TestInitializeWithEnv_DebugLevel(t *testing.T) { //nolint:paralleltest // mutates singleton and viper
	prev := singleton.Load()
	t.Cleanup(func() {
		singleton.Store(prev)
		viper.Set("debug", false)
	})

	ctrl := gomock.NewController(t)
	mockEnv := mocks.NewMockReader(ctrl)
	mockEnv.EXPECT().Getenv(UnstructuredLogsEnvVar).Return("false")

	viper.Set("debug", true)
	InitializeWithEnv(mockEnv)

	got := singleton.Load()
	require.NotNil(t, got)
	assert.True(t, got.Enabled(t.Context(), slog.LevelDebug))
}
