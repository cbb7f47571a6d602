package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		InstallID: "install-abc",
		BaseDir:   "/home/user/.local/share/cdmkn",
		LogDir:    "/home/user/.local/share/cdmkn/log",
		PIDPath:   "/home/user/.local/share/cdmkn/watcher.pid",
		Database:  DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/cdmkn"},
		Watcher: WatcherConfig{
			Interval:  Duration{2 * time.Second},
			Trigger:   "notify",
			FullEvery: 30,
		},
		Filesystem: FilesystemConfig{
			Ignore: []string{"*.log", "build/"},
		},
		Sync: SyncConfig{
			Vault: VaultConfig{Type: "s3", Name: "remote", S3Bucket: "history", S3Region: "eu-west-1"},
			Encryption: EncryptionConfig{
				Type:           "age",
				PublicKeyPath:  "/keys/cdmkn.pub",
				PrivateKeyPath: "/keys/cdmkn.key",
			},
			BatchSize: 100,
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), `interval = "2s"`) {
		t.Errorf("encoded config does not hold interval as a duration string:\n%s", buf.String())
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.InstallID != original.InstallID {
		t.Errorf("InstallID = %q, want %q", got.InstallID, original.InstallID)
	}
	if got.PIDPath != original.PIDPath {
		t.Errorf("PIDPath = %q, want %q", got.PIDPath, original.PIDPath)
	}
	if got.Watcher.Interval.Duration != 2*time.Second {
		t.Errorf("Watcher.Interval = %v, want 2s", got.Watcher.Interval)
	}
	if got.Watcher.Trigger != "notify" {
		t.Errorf("Watcher.Trigger = %q, want notify", got.Watcher.Trigger)
	}
	if got.Watcher.FullEvery != 30 {
		t.Errorf("Watcher.FullEvery = %d, want 30", got.Watcher.FullEvery)
	}
	if got.Sync.Vault.S3Bucket != "history" {
		t.Errorf("Sync.Vault.S3Bucket = %q, want history", got.Sync.Vault.S3Bucket)
	}
	if got.Sync.Encryption.PrivateKeyPath != "/keys/cdmkn.key" {
		t.Errorf("Sync.Encryption.PrivateKeyPath = %q", got.Sync.Encryption.PrivateKeyPath)
	}
	if got.Sync.BatchSize != 100 {
		t.Errorf("Sync.BatchSize = %d, want 100", got.Sync.BatchSize)
	}
	if len(got.Filesystem.Ignore) != 2 {
		t.Fatalf("len(Filesystem.Ignore) = %d, want 2", len(got.Filesystem.Ignore))
	}
}

func TestManager_Read(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "unknown key",
			input:   "install_id = \"x\"\nbogus = 1\n",
			wantErr: "unknown config key",
		},
		{
			name:    "bad duration",
			input:   "[watcher]\ninterval = \"soon\"\n",
			wantErr: "invalid duration",
		},
		{
			name:  "minimal",
			input: "install_id = \"x\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := &Manager{}
			_, err := m.Read(strings.NewReader(tt.input))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Read() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Read() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("install-1", "/data/cdmkn")

	if cfg.InstallID != "install-1" {
		t.Errorf("InstallID = %q, want %q", cfg.InstallID, "install-1")
	}
	if cfg.LogDir != "/data/cdmkn/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/cdmkn/log")
	}
	if cfg.PIDPath != "/data/cdmkn/watcher.pid" {
		t.Errorf("PIDPath = %q, want %q", cfg.PIDPath, "/data/cdmkn/watcher.pid")
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/cdmkn" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Watcher.Interval.Duration != DefaultInterval {
		t.Errorf("Watcher.Interval = %v, want %v", cfg.Watcher.Interval, DefaultInterval)
	}
	if cfg.Sync.Encryption.PublicKeyPath != "/data/cdmkn/keys/cdmkn.pub" {
		t.Errorf("Sync.Encryption.PublicKeyPath = %q", cfg.Sync.Encryption.PublicKeyPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing install id", func(c *Config) { c.InstallID = "" }},
		{"missing pid path", func(c *Config) { c.PIDPath = "" }},
		{"unknown database", func(c *Config) { c.Database.Type = "postgres" }},
		{"sqlite without data dir", func(c *Config) { c.Database.DataDir = "" }},
		{"zero interval", func(c *Config) { c.Watcher.Interval = Duration{} }},
		{"unknown trigger", func(c *Config) { c.Watcher.Trigger = "inotify" }},
		{"negative full_every", func(c *Config) { c.Watcher.FullEvery = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig("install-1", "/data/cdmkn")
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cdmkn.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cdmkn.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cdmkn.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.InstallID != "read-test" {
			t.Errorf("InstallID = %q, want %q", got.InstallID, "read-test")
		}
		if got.Watcher.Interval.Duration != DefaultInterval {
			t.Errorf("Watcher.Interval = %v, want %v", got.Watcher.Interval, DefaultInterval)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/cdmkn.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
