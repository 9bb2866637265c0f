package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	cfg := New("config.json")
	snap := cfg.Snapshot()

	if snap.Port != DefaultPort {
		t.Fatalf("Port = %d, want %d", snap.Port, DefaultPort)
	}
	if snap.SampleRate != DefaultSampleRate {
		t.Fatalf("SampleRate = %d, want %d", snap.SampleRate, DefaultSampleRate)
	}
	if snap.Channels != DefaultChannels {
		t.Fatalf("Channels = %d, want %d", snap.Channels, DefaultChannels)
	}
	if snap.BufferSeconds != DefaultBufferSeconds {
		t.Fatalf("BufferSeconds = %d, want %d", snap.BufferSeconds, DefaultBufferSeconds)
	}
	if snap.OutputDir != DefaultOutputDir {
		t.Fatalf("OutputDir = %q, want %q", snap.OutputDir, DefaultOutputDir)
	}
	if len(snap.Wakeword.Keywords) != 1 || snap.Wakeword.Keywords[0] != "porcupine" {
		t.Fatalf("Keywords = %v, want [porcupine]", snap.Wakeword.Keywords)
	}
	if snap.BufferCapacity() != DefaultSampleRate*DefaultBufferSeconds {
		t.Fatalf("BufferCapacity = %d, want %d", snap.BufferCapacity(), DefaultSampleRate*DefaultBufferSeconds)
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)

	if err := cfg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not created: %v", err)
	}
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"system": {"port": 9001}, "audio": {"buffer_seconds": 30}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	snap := cfg.Snapshot()
	if snap.Port != 9001 {
		t.Fatalf("Port = %d, want 9001", snap.Port)
	}
	if snap.BufferSeconds != 30 {
		t.Fatalf("BufferSeconds = %d, want 30", snap.BufferSeconds)
	}
	if snap.SampleRate != DefaultSampleRate {
		t.Fatalf("SampleRate = %d, want default %d", snap.SampleRate, DefaultSampleRate)
	}
	if snap.OutputDir != DefaultOutputDir {
		t.Fatalf("OutputDir = %q, want default %q", snap.OutputDir, DefaultOutputDir)
	}
}

func TestLoadAccessKeyEnvFallback(t *testing.T) {
	t.Setenv(accessKeyEnv, "key-from-env")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Snapshot().Wakeword.AccessKey; got != "key-from-env" {
		t.Fatalf("AccessKey = %q, want key-from-env", got)
	}
}

func TestLoadAccessKeyEnvFallbackFreshInstall(t *testing.T) {
	t.Setenv(accessKeyEnv, "key-from-env")

	// No config file yet: Load creates the default file and must still pick
	// up the key from the environment.
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Snapshot().Wakeword.AccessKey; got != "key-from-env" {
		t.Fatalf("AccessKey = %q, want key-from-env", got)
	}

	// The created file must not have the secret baked in.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read created config: %v", err)
	}
	if strings.Contains(string(data), "key-from-env") {
		t.Fatal("environment access key persisted to the default config file")
	}
}

func TestLoadFileKeyWinsOverEnv(t *testing.T) {
	t.Setenv(accessKeyEnv, "key-from-env")

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"wakeword": {"access_key": "key-from-file"}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Snapshot().Wakeword.AccessKey; got != "key-from-file" {
		t.Fatalf("AccessKey = %q, want key-from-file", got)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port_out_of_range", `{"system": {"port": 99999}}`},
		{"bad_log_level", `{"system": {"log_level": "loud"}}`},
		{"too_many_channels", `{"audio": {"channels": 6}}`},
		{"sensitivity_out_of_range", `{"wakeword": {"sensitivities": [1.5]}}`},
		{"bad_webhook_url", `{"notifications": {"webhook": {"url": "not a url"}}}`},
		{"malformed_json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("setup: %v", err)
			}
			cfg := New(path)
			if err := cfg.Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSnapshotHelpers(t *testing.T) {
	snap := Snapshot{}
	if snap.HasWebhook() || snap.HasEmail() || snap.HasS3() {
		t.Fatal("empty snapshot reports configured channels")
	}

	snap.WebhookURL = "https://example.com/hook"
	if !snap.HasWebhook() {
		t.Fatal("HasWebhook = false with URL set")
	}

	snap.S3 = S3Config{Bucket: "b", AccessKeyID: "id", SecretAccessKey: "secret"}
	if !snap.HasS3() {
		t.Fatal("HasS3 = false with full credentials")
	}

	snap.Email = EmailConfig{
		TenantID: "t", ClientID: "c", ClientSecret: "s",
		FromAddress: "daemon@example.com", Recipients: "ops@example.com",
	}
	if !snap.HasEmail() {
		t.Fatal("HasEmail = false with full settings")
	}
}
