package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:4444", c.ServerURL)
	assert.Equal(t, 5*time.Second, c.RequestTimeout)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cli.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_url":"http://json:1","request_timeout":"2s"}`), 0o600))

	tests := []struct {
		name    string
		args    []string
		want    *Config
		wantErr bool
	}{
		{name: "defaults", args: nil,
			want: &Config{ServerURL: "http://127.0.0.1:4444", RequestTimeout: 5 * time.Second}},
		{name: "flags", args: []string{"-a", "http://flag:2", "-t", "10"},
			want: &Config{ServerURL: "http://flag:2", RequestTimeout: 10 * time.Second}},
		{name: "json", args: []string{"-c", path},
			want: &Config{ServerURL: "http://json:1", RequestTimeout: 2 * time.Second}},
		{name: "flags override json", args: []string{"-config", path, "-a", "http://flag:3"},
			want: &Config{ServerURL: "http://flag:3", RequestTimeout: 2 * time.Second}},
		{name: "foreign flags ignored", args: []string{"-x", "1", "-a", "http://flag:4"},
			want: &Config{ServerURL: "http://flag:4", RequestTimeout: 5 * time.Second}},
		{name: "bad timeout", args: []string{"-t", "abc"}, wantErr: true},
		{name: "missing file", args: []string{"-c", filepath.Join(dir, "nope.json")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := load(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.want, got))
		})
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"request_timeout":"soon"}`), 0o600))

	_, err := load([]string{"-c", path})
	require.Error(t, err)
}
