package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/config"
	"cdmkn-go/internal/daemon"
	"cdmkn-go/internal/database"
	"cdmkn-go/internal/database/migrations"
	"cdmkn-go/internal/database/sqlc"
	"cdmkn-go/internal/encryption"
	cdmknfs "cdmkn-go/internal/fs"
	cdmknsync "cdmkn-go/internal/sync"
	"cdmkn-go/internal/vault"
	"cdmkn-go/internal/watch"
)

// Options tune how an app is built. The zero value is what the CLI uses.
type Options struct {
	// Stderr receives the console copy of the log. Defaults to os.Stderr.
	Stderr  io.Writer
	Verbose bool
	Clock   cdmkn.Clock
	IDGen   cdmkn.IDGenerator
	// Filesystem replaces the OS filesystem, for tests.
	Filesystem cdmkn.FilesystemManager
}

// CdmknApp is the application layer between the CLI and the engine. It
// builds every dependency from config, exposes operations that accept raw
// string paths and closes the change log on Close.
type CdmknApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	fsmgr     cdmkn.FilesystemManager
	service   *cdmkn.Service
	logger    cdmkn.Logger
	clock     cdmkn.Clock
	idgen     cdmkn.IDGenerator
	run       *Run
	logCloser io.Closer
}

// NewCdmknApp creates a fully wired app from cfg. command names the CLI
// command being run and is recorded with the run. The caller must call Close.
func NewCdmknApp(cfg *config.Config, command string, opts Options) (*CdmknApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = cdmkn.RealClock{}
	}
	if opts.IDGen == nil {
		opts.IDGen = cdmkn.UUIDGenerator{}
	}

	run := NewRun(command, opts.Clock, opts.IDGen)
	slogger, logCloser, err := newLogger(cfg.LogDir, run.ID, opts.Stderr, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	fsmgr := opts.Filesystem
	if fsmgr == nil {
		fsmgr = cdmknfs.NewOSFilesystemManager(cfg.Filesystem.Ignore)
	}

	db, err := database.NewChangeLogFromConfig(cfg.Database, opts.Clock)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("opening change log: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		logCloser.Close()
		if errors.Is(err, migrations.ErrNotMigrated) {
			return nil, fmt.Errorf("database schema out of date, run `cdmkn init`: %w", err)
		}
		return nil, fmt.Errorf("checking database schema: %w", err)
	}

	logger.Debug("run started", "command", command)

	return &CdmknApp{
		cfg:       cfg,
		db:        db,
		fsmgr:     fsmgr,
		service:   cdmkn.NewService(db, fsmgr, logger),
		logger:    logger,
		clock:     opts.Clock,
		idgen:     opts.IDGen,
		run:       run,
		logCloser: logCloser,
	}, nil
}

// Run returns the invocation record.
func (a *CdmknApp) Run() *Run { return a.run }

// resolveExisting canonicalizes a path that must exist on disk.
func (a *CdmknApp) resolveExisting(rawPath string) (*cdmkn.Path, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving path: %v", cdmkn.ErrInvalidInput, err)
	}
	return p, nil
}

// resolveRecorded canonicalizes a path whose history is asked for. The file
// may have been deleted since, so a missing path falls back to its
// absolute form with the parent directory's symlinks resolved.
func (a *CdmknApp) resolveRecorded(rawPath string) (string, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err == nil {
		return p.String(), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if dir, err := a.fsmgr.Resolve(filepath.Dir(absPath)); err == nil {
		return filepath.Join(dir.String(), filepath.Base(absPath)), nil
	}
	return absPath, nil
}

// AddRepository registers rawPath as a watched root.
func (a *CdmknApp) AddRepository(rawPath string) (*sqlc.Repository, error) {
	p, err := a.resolveExisting(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.AddRepository(p)
}

// ListRepositories returns all registered repositories.
func (a *CdmknApp) ListRepositories() ([]*sqlc.Repository, error) {
	return a.service.ListRepositories()
}

// SetRepositoryEnabled enables or disables watching of a repository.
func (a *CdmknApp) SetRepositoryEnabled(rawPath string, enabled bool) error {
	absPath, err := a.resolveRecorded(rawPath)
	if err != nil {
		return err
	}
	return a.service.SetRepositoryEnabled(absPath, enabled)
}

// FileHistory returns up to limit changes of a file, newest first.
func (a *CdmknApp) FileHistory(rawPath string, limit int) ([]*cdmkn.HistoryEntry, error) {
	absPath, err := a.resolveRecorded(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.FileHistory(absPath, limit)
}

// Version returns one decoded change of a file.
func (a *CdmknApp) Version(rawPath string, changeID int64) (*cdmkn.Version, error) {
	absPath, err := a.resolveRecorded(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.Version(absPath, changeID)
}

// EventLog walks a repository's event chain from its current event.
func (a *CdmknApp) EventLog(rawPath string, limit int) ([]*sqlc.Event, error) {
	p, err := a.resolveExisting(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.EventLog(p.String(), limit)
}

// Restore overwrites a file with its content at a change.
func (a *CdmknApp) Restore(rawPath string, changeID int64, previous bool) error {
	absPath, err := a.resolveRecorded(rawPath)
	if err != nil {
		return err
	}
	return a.service.Restore(absPath, changeID, previous)
}

// RunWatcher runs the watch daemon in the foreground until it is stopped.
// The bootstrap step creates the data directory and applies pending
// migrations once the liveness marker is held.
func (a *CdmknApp) RunWatcher(ctx context.Context) error {
	trigger, err := watch.NewTriggerFromConfig(a.cfg.Watcher, a.logger)
	if err != nil {
		return err
	}
	defer trigger.Close()

	scheduler := watch.NewScheduler(a.db, a.fsmgr, a.logger, a.clock)
	controller := daemon.NewController(daemon.NewMarker(a.cfg.PIDPath), scheduler, trigger, a.logger)

	return controller.Start(ctx, func(context.Context) error {
		if err := os.MkdirAll(a.cfg.BaseDir, 0755); err != nil {
			return fmt.Errorf("creating base directory: %w", err)
		}
		return a.db.MigrateUp()
	})
}

// Controller returns a controller for the stop and status commands.
func Controller(cfg *config.Config) *daemon.Controller {
	return daemon.NewController(daemon.NewMarker(cfg.PIDPath), nil, nil, nil)
}

// newPusher builds the sync client from config.
func (a *CdmknApp) newPusher(ctx context.Context) (*cdmknsync.Pusher, cdmkn.Encryptor, error) {
	v, err := vault.NewVaultFromConfig(ctx, a.cfg.Sync.Vault)
	if err != nil {
		return nil, nil, fmt.Errorf("creating vault: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Sync.Encryption)
	if err != nil {
		return nil, nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil && !enc.IsConfigured() {
		return nil, nil, fmt.Errorf("encryption keys are missing, run `cdmkn keys init`")
	}
	p := cdmknsync.NewPusher(a.db, v, enc, a.cfg.InstallID, a.cfg.Sync.BatchSize, a.logger, a.clock, a.idgen)
	return p, enc, nil
}

// Push uploads history recorded since the last push.
func (a *CdmknApp) Push(ctx context.Context) (*cdmknsync.PushResult, error) {
	p, _, err := a.newPusher(ctx)
	if err != nil {
		return nil, err
	}
	return p.Push()
}

// Bundles returns the manifest of pushed bundles.
func (a *CdmknApp) Bundles(ctx context.Context) (*cdmknsync.Manifest, error) {
	p, _, err := a.newPusher(ctx)
	if err != nil {
		return nil, err
	}
	return p.Manifest()
}

// FetchBundle downloads one pushed bundle. passphrase unlocks encrypted
// bundles and is ignored when encryption is off.
func (a *CdmknApp) FetchBundle(ctx context.Context, checksum, passphrase string) (*cdmknsync.Bundle, error) {
	p, enc, err := a.newPusher(ctx)
	if err != nil {
		return nil, err
	}
	var dctx cdmkn.DecryptionContext
	if enc != nil {
		dctx, err = enc.Unlock(passphrase)
		if err != nil {
			return nil, fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return p.Fetch(checksum, dctx)
}

// Close records the end of the run and releases all resources.
func (a *CdmknApp) Close() error {
	elapsed := a.clock.Now().Sub(a.run.StartedAt)
	a.logger.Debug("run finished", "command", a.run.Command, "status", a.run.Status, "elapsed", elapsed.Truncate(time.Millisecond))

	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
