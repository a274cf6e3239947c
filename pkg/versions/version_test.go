// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package versions

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo(t *testing.T) { //nolint:paralleltest // modifies package variables
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	})

	tests := []struct {
		name          string
		version       string
		commit        string
		buildDate     string
		wantVersion   string
		wantBuildDate string
	}{
		{
			name:          "dev build without commit",
			version:       "dev",
			commit:        unknownStr,
			buildDate:     unknownStr,
			wantVersion:   "build-unknown",
			wantBuildDate: unknownStr,
		},
		{
			name:          "dev build truncates commit",
			version:       "dev",
			commit:        "abc123def456789",
			buildDate:     unknownStr,
			wantVersion:   "build-abc123de",
			wantBuildDate: unknownStr,
		},
		{
			name:          "dev build with short commit",
			version:       "dev",
			commit:        "short",
			buildDate:     unknownStr,
			wantVersion:   "build-short",
			wantBuildDate: unknownStr,
		},
		{
			name:          "release formats build date",
			version:       "v0.3.0",
			commit:        "abc123def456789",
			buildDate:     "2025-06-01T08:15:00Z",
			wantVersion:   "v0.3.0",
			wantBuildDate: "2025-06-01 08:15:00 UTC",
		},
		{
			name:          "unparseable build date is kept",
			version:       "v0.3.1",
			commit:        "def456",
			buildDate:     "yesterday",
			wantVersion:   "v0.3.1",
			wantBuildDate: "yesterday",
		},
	}

	for _, tt := range tests { //nolint:paralleltest // modifies package variables
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit, BuildDate = tt.version, tt.commit, tt.buildDate

			got := GetVersionInfo()

			assert.Equal(t, VersionInfo{
				Version:   tt.wantVersion,
				Commit:    tt.commit,
				BuildDate: tt.wantBuildDate,
				GoVersion: runtime.Version(),
				Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
			}, got)
		})
	}
}
