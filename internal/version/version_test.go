package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2024-03-09T10:11:12Z"},
	}

	tests := []struct {
		name                    string
		version, commit         string
		settings                []debug.BuildSetting
		wantVersion, wantCommit string
	}{
		{"from vcs", "", "", settings, "dev-20240309", "0123456-dirty"},
		{"ldflags win", "v1.0.0", "abc", settings, "v1.0.0", "abc"},
		{"short revision", "", "", []debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}}, "", "abc"},
		{"no vcs", "", "", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, c := fromSettings(tt.settings, tt.version, tt.commit)
			if v != tt.wantVersion || c != tt.wantCommit {
				t.Errorf("fromSettings() = %q, %q, want %q, %q", v, c, tt.wantVersion, tt.wantCommit)
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" {
		t.Errorf("Get() = %+v, want version and commit set", info)
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Platform = %q", info.Platform)
	}
	if !strings.Contains(Full(), info.Version) {
		t.Errorf("Full() = %q does not contain %q", Full(), info.Version)
	}
}
