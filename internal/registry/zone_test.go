package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectZone(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing")

	plainLocaltime := filepath.Join(dir, "localtime")
	require.NoError(t, os.WriteFile(plainLocaltime, []byte("TZif"), 0o644))
	timezoneFile := filepath.Join(dir, "timezone")
	require.NoError(t, os.WriteFile(timezoneFile, []byte("Europe/Berlin\n"), 0o644))

	tests := []struct {
		name                      string
		localName, tz, lt, tzfile string
		want                      string
		wantOK                    bool
	}{
		{"named local zone", "America/New_York", "", missing, missing, "America/New_York", true},
		{"TZ variable", "Local", "Asia/Tokyo", missing, missing, "Asia/Tokyo", true},
		{"TZ with colon", "Local", ":Asia/Tokyo", missing, missing, "Asia/Tokyo", true},
		{"explicit UTC", "UTC", "UTC", missing, missing, "UTC", true},
		{"plain localtime falls through to timezone file", "Local", "", plainLocaltime, timezoneFile, "Europe/Berlin", true},
		{"unknown TZ ignored", "Local", "Mars/Olympus", missing, timezoneFile, "Europe/Berlin", true},
		{"nothing found", "Local", "", plainLocaltime, missing, "UTC", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := detectZone(tt.localName, tt.tz, tt.lt, tt.tzfile)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestDetectZoneFromLocaltimeLink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "localtime")
	if err := os.Symlink("/usr/share/zoneinfo/Europe/Paris", link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	got, ok := detectZone("Local", "", link, filepath.Join(dir, "missing"))
	require.True(t, ok)
	require.Equal(t, "Europe/Paris", got)
}
