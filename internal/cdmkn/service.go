package cdmkn

import (
	"fmt"

	"cdmkn-go/internal/database/sqlc"
)

// Service is the orchestration layer behind the CLI and the history viewer.
// It registers repositories and answers history queries; it never writes
// changes, which is the scheduler's job alone.
type Service struct {
	changelog ChangeLog
	fsmgr     FilesystemManager
	logger    Logger
}

// NewService creates a Service over the given change log and filesystem.
func NewService(changelog ChangeLog, fsmgr FilesystemManager, logger Logger) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Service{
		changelog: changelog,
		fsmgr:     fsmgr,
		logger:    logger,
	}
}

// AddRepository registers a directory for watching. Adding an already
// registered directory returns the existing repository unchanged.
func (s *Service) AddRepository(path *Path) (*sqlc.Repository, error) {
	if !path.IsDir() {
		return nil, invalidInputf("path is not a directory: %s", path)
	}

	existing, err := s.changelog.FindRepositoryByPath(path.String())
	if err != nil {
		return nil, fmt.Errorf("checking for existing repository: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	repo, err := s.changelog.CreateRepository(path.String())
	if err != nil {
		return nil, fmt.Errorf("creating repository: %w", err)
	}

	s.logger.Info("repository added", "path", path.String(), "id", repo.ID)
	return repo, nil
}

// ListRepositories returns every registered repository.
func (s *Service) ListRepositories() ([]*sqlc.Repository, error) {
	repos, err := s.changelog.ListRepositories()
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	return repos, nil
}

// SetRepositoryEnabled switches a repository between inactive and starting.
// Enabling an already watched repository keeps its state.
func (s *Service) SetRepositoryEnabled(absPath string, enabled bool) error {
	repo, err := s.changelog.FindRepositoryByPath(absPath)
	if err != nil {
		return fmt.Errorf("finding repository: %w", err)
	}
	if repo == nil {
		return invalidInputf("not a registered repository: %s", absPath)
	}

	current := RepoStatus(repo.Status)
	next := RepoInactive
	if enabled {
		if current.Watched() {
			return nil
		}
		next = RepoStarting
	}
	if current == next {
		return nil
	}

	if err := s.changelog.SetRepositoryStatus(repo.ID, next); err != nil {
		return fmt.Errorf("updating repository status: %w", err)
	}
	s.logger.Info("repository status changed", "path", absPath, "from", current, "to", next)
	return nil
}

// locateDocument finds the repository and document for an absolute file path.
func (s *Service) locateDocument(absPath string) (*sqlc.Repository, *sqlc.Document, error) {
	repo, err := s.changelog.SearchRepositoryForPath(absPath)
	if err != nil {
		return nil, nil, fmt.Errorf("searching for repository: %w", err)
	}
	if repo == nil {
		return nil, nil, invalidInputf("file is not within a watched repository: %s", absPath)
	}

	doc, err := s.changelog.FindDocumentByPath(repo.ID, absPath)
	if err != nil {
		return nil, nil, fmt.Errorf("finding document: %w", err)
	}
	if doc == nil {
		return nil, nil, invalidInputf("file is not tracked: %s", absPath)
	}
	return repo, doc, nil
}
