package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicsched/internal/config"
)

func TestAgendaURL(t *testing.T) {
	tests := []struct {
		listen string
		want   string
	}{
		{"127.0.0.1:8080", "http://127.0.0.1:8080/agenda"},
		{":9000", "http://127.0.0.1:9000/agenda"},
		{"0.0.0.0:80", "http://127.0.0.1:80/agenda"},
		{"[::]:8080", "http://127.0.0.1:8080/agenda"},
		{"clinic.local:8080", "http://clinic.local:8080/agenda"},
		{"clinic.local", "http://clinic.local/agenda"},
	}
	for _, tt := range tests {
		t.Run(tt.listen, func(t *testing.T) {
			assert.Equal(t, tt.want, AgendaURL(tt.listen))
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "front", Password: "desk"}

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "http://127.0.0.1:8080/agenda", opts.URL)
	assert.Equal(t, cfg.Capture.OutputPath, opts.OutputPath)
	assert.Equal(t, "Basic ZnJvbnQ6ZGVzaw==", opts.authHeader())

	opts.Password = ""
	assert.Empty(t, opts.authHeader())
}

func TestNormalize(t *testing.T) {
	opts := CaptureOptions{URL: "http://x/agenda", OutputPath: "out.png"}
	require.NoError(t, opts.normalize())
	assert.Equal(t, DefaultWidth, opts.Width)
	assert.Equal(t, DefaultHeight, opts.Height)
	assert.Equal(t, DefaultTimeoutSec*time.Second, opts.Timeout)

	assert.Error(t, (&CaptureOptions{OutputPath: "out.png"}).normalize())
	assert.Error(t, (&CaptureOptions{URL: "http://x"}).normalize())
	assert.Error(t, CaptureAgendaPNG(context.Background(), CaptureOptions{}))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agenda.png")
	require.NoError(t, writeFileAtomic(path, []byte("png")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
