package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"cdmkn-go/internal/config"
	"cdmkn-go/internal/database"
	"cdmkn-go/internal/encryption"
)

// Initialize prepares a new installation: the base directory, the config
// file at configPath and a migrated change log. If any step fails,
// everything this call created is removed again.
func Initialize(configPath string, cfg *config.Config) (err error) {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	_, statErr := os.Stat(cfg.BaseDir)
	createdBase := errors.Is(statErr, fs.ErrNotExist)
	wroteConfig := false
	defer func() {
		if err == nil {
			return
		}
		if wroteConfig {
			os.Remove(configPath)
		}
		if createdBase {
			os.RemoveAll(cfg.BaseDir)
		}
	}()

	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return fmt.Errorf("creating base directory: %w", err)
	}

	if err := config.Init(configPath, cfg); err != nil {
		return err
	}
	wroteConfig = true

	db, err := database.NewChangeLogFromConfig(cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()
	if err := db.MigrateUp(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// SetupKeys generates the encryption key pair named in cfg, protected by
// passphrase. Encryption type "none" needs no keys.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Sync.Encryption)
	if err != nil {
		return err
	}
	if enc == nil {
		return fmt.Errorf("encryption is disabled in the config")
	}
	if enc.IsConfigured() {
		return fmt.Errorf("encryption keys already exist")
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("generating keys: %w", err)
	}
	return nil
}
