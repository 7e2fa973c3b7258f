package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autoblog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTOBLOG_AUTH_JWT_SECRET", "0123456789abcdef")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "file", cfg.Options.Backend)
	assert.Equal(t, "memory", cfg.Posts.Backend)
	assert.Equal(t, "local", cfg.Media.Backend)
	assert.Equal(t, "static", cfg.AI.Provider)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 2*time.Minute, cfg.AI.Bedrock.Timeout)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.True(t, cfg.Cron.OnRequest)
	assert.Equal(t, "http://localhost:8080/media", cfg.MediaBaseURL())
	assert.False(t, cfg.UsesPostgres())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  base_url: "https://blog.example.com"
auth:
  jwt_secret: "file-secret-0123456789"
options:
  backend: postgres
posts:
  backend: postgres
database:
  dsn: "postgres://localhost/autoblog"
media:
  backend: s3
  s3:
    bucket: blog-media
    public_url: "https://cdn.example.com"
ai:
  provider: bedrock
  bedrock:
    model_id: anthropic.test
    max_tokens: 512
plugins:
  - wordpress-seo/wp-seo.php
`)
	t.Setenv("AUTOBLOG_SERVER_ADDR", ":7070")
	t.Setenv("AUTOBLOG_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr, "env overrides file")
	assert.Equal(t, "https://blog.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "blog-media", cfg.Media.S3.Bucket)
	assert.Equal(t, "anthropic.test", cfg.AI.Bedrock.ModelID)
	assert.Equal(t, 512, cfg.AI.Bedrock.MaxTokens)
	assert.Equal(t, []string{"wordpress-seo/wp-seo.php"}, cfg.Plugins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.UsesPostgres())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "short secret",
			content: "auth:\n  jwt_secret: short\n",
			want:    "jwt_secret",
		},
		{
			name:    "unknown backend",
			content: "auth:\n  disabled: true\noptions:\n  backend: etcd\n",
			want:    "Backend",
		},
		{
			name:    "postgres without dsn",
			content: "auth:\n  disabled: true\nposts:\n  backend: postgres\n",
			want:    "database.dsn",
		},
		{
			name:    "s3 without bucket",
			content: "auth:\n  disabled: true\nmedia:\n  backend: s3\n",
			want:    "media.s3.bucket",
		},
		{
			name:    "bad base url",
			content: "auth:\n  disabled: true\nserver:\n  base_url: not a url\n",
			want:    "BaseURL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHTTPConfig_ClientConfig(t *testing.T) {
	cfg := HTTPConfig{RequestsPerSecond: 2, MaxRetries: 1}.ClientConfig()
	assert.Equal(t, 2.0, cfg.RequestsPerSecond)
	assert.Equal(t, uint64(1), cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.Burst)
}
