// Package watch runs the change capture pipeline: on every pass it finds
// the files of each watched repository that changed since their cached
// baseline, diffs them and appends the result to the change log.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"
	"unicode/utf8"

	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/database/sqlc"
	"cdmkn-go/internal/diff"
)

// Pass describes the scope of one scheduling pass. A full pass walks every
// watched repository; otherwise only the Dirty paths are examined.
type Pass struct {
	Full  bool
	Dirty []string
}

// FullPass is the scope of a pass that walks every repository.
var FullPass = Pass{Full: true}

// PassReport summarizes what a pass did.
type PassReport struct {
	Full bool
	// Roots are the watched repository roots visited by the pass.
	Roots []string
	// Files counts valid files examined.
	Files     int
	Baselined int
	Changes   int
	Skipped   int
	Dropped   int
	Events    []int64
	Duration  time.Duration
}

// baseline is the cached state of one document.
type baseline struct {
	documentID int64
	content    string
	// modTime is the zero time for baselines recovered from the change log,
	// which forces a read on the first pass after a restart.
	modTime time.Time
}

// Scheduler owns the baseline cache. It is driven by a single loop and is
// not safe for concurrent use.
type Scheduler struct {
	changelog cdmkn.ChangeLog
	fsmgr     cdmkn.FilesystemManager
	logger    cdmkn.Logger
	clock     cdmkn.Clock
	cache     map[string]*baseline
}

func NewScheduler(changelog cdmkn.ChangeLog, fsmgr cdmkn.FilesystemManager, logger cdmkn.Logger, clock cdmkn.Clock) *Scheduler {
	if logger == nil {
		logger = cdmkn.NewNopLogger()
	}
	if clock == nil {
		clock = cdmkn.RealClock{}
	}
	return &Scheduler{
		changelog: changelog,
		fsmgr:     fsmgr,
		logger:    logger,
		clock:     clock,
		cache:     make(map[string]*baseline),
	}
}

// Cached reports the number of documents with an in-memory baseline.
func (s *Scheduler) Cached() int { return len(s.cache) }

// repoPass carries per-repository state through one pass.
type repoPass struct {
	repo    *sqlc.Repository
	eventID int64
}

// RunPass executes one scheduling pass. A returned *cdmkn.StorageError is
// fatal: the caller must stop. Baselines of files whose change could not be
// written are left as they were.
func (s *Scheduler) RunPass(ctx context.Context, pass Pass) (*PassReport, error) {
	start := s.clock.Now()
	report := &PassReport{Full: pass.Full}

	repos, err := s.changelog.ListRepositories()
	if err != nil {
		return report, cdmkn.NewStorageError("listing repositories", err)
	}

	visited := make(map[string]*baseline)
	dropped := make(map[string]bool)

	err = s.runRepos(ctx, repos, pass, report, visited, dropped)
	s.commit(pass, visited, dropped, err == nil)
	report.Dropped = len(dropped)
	report.Duration = s.clock.Now().Sub(start)
	return report, err
}

func (s *Scheduler) runRepos(ctx context.Context, repos []*sqlc.Repository, pass Pass, report *PassReport, visited map[string]*baseline, dropped map[string]bool) error {
	for _, repo := range repos {
		status := cdmkn.RepoStatus(repo.Status)
		if !status.Watched() {
			continue
		}
		report.Roots = append(report.Roots, repo.AbsolutePath)

		var files []*cdmkn.Path
		if pass.Full {
			root, err := s.fsmgr.Resolve(repo.AbsolutePath)
			if err == nil {
				files, err = s.fsmgr.FindFiles(root)
			}
			if err != nil {
				s.logger.Warn("skipping repository", "path", repo.AbsolutePath, "error", err)
				report.Skipped++
				continue
			}
		} else {
			files = s.dirtyFiles(repo, pass.Dirty, dropped)
		}

		rp := &repoPass{repo: repo}
		for _, p := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, seen := visited[p.String()]; seen {
				continue
			}
			if !cdmkn.IsValidFile(p.Info()) {
				continue
			}
			report.Files++

			b, err := s.visit(rp, p, report)
			if err != nil {
				return err
			}
			if b != nil {
				visited[p.String()] = b
			}
		}

		if pass.Full && status == cdmkn.RepoStarting {
			if err := s.changelog.SetRepositoryStatus(repo.ID, cdmkn.RepoActive); err != nil {
				return cdmkn.NewStorageError("activating repository", err)
			}
			s.logger.Info("repository active", "path", repo.AbsolutePath)
		}
	}
	return nil
}

// dirtyFiles resolves the dirty paths that lie inside repo. Paths that no
// longer name a valid, non-ignored file are recorded in dropped.
func (s *Scheduler) dirtyFiles(repo *sqlc.Repository, dirty []string, dropped map[string]bool) []*cdmkn.Path {
	var files []*cdmkn.Path
	for _, raw := range dirty {
		if _, ok := cdmkn.RelativePath(repo.AbsolutePath, raw); !ok {
			continue
		}
		p, err := s.fsmgr.Resolve(raw)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				dropped[raw] = true
			}
			continue
		}
		if p.IsDir() {
			continue
		}
		if _, ok := p.RelativeTo(repo.AbsolutePath); !ok {
			// A symlink pointing out of the repository.
			continue
		}
		ignored, err := s.fsmgr.IsIgnored(p, repo.AbsolutePath)
		if err != nil || ignored || !cdmkn.IsValidFile(p.Info()) {
			dropped[p.String()] = true
			continue
		}
		files = append(files, p)
	}
	return files
}

// visit runs the compare-diff-append pipeline for one file and returns the
// baseline to keep for it, or nil to forget it.
func (s *Scheduler) visit(rp *repoPass, p *cdmkn.Path, report *PassReport) (*baseline, error) {
	path := p.String()
	cached, ok := s.cache[path]
	if !ok {
		stored, err := s.changelog.GetDocumentBaseline(rp.repo.ID, path)
		if err != nil {
			var corrupt *cdmkn.CorruptHistoryError
			if errors.As(err, &corrupt) {
				s.logger.Error("cannot recover baseline", "path", path, "error", err)
				report.Skipped++
				return nil, nil
			}
			return nil, cdmkn.NewStorageError("loading baseline", err)
		}
		if stored == nil {
			return s.establish(rp, p, report)
		}
		cached = &baseline{documentID: stored.DocumentID, content: stored.Content}
	}

	if cached.modTime.Equal(p.ModTime()) {
		return cached, nil
	}

	content, err := s.read(p)
	if err != nil {
		s.logger.Warn("skipping file", "path", path, "error", err)
		report.Skipped++
		return cached, nil
	}

	result := diff.Lines(cached.content, content)
	if result.Distance == 0 {
		return &baseline{documentID: cached.documentID, content: cached.content, modTime: p.ModTime()}, nil
	}

	if rp.eventID == 0 {
		eventID, err := s.changelog.StartEvent(rp.repo.ID, rp.repo.CurrentEventID)
		if err != nil {
			return nil, cdmkn.NewStorageError("starting event", err)
		}
		rp.eventID = eventID
		rp.repo.CurrentEventID.Int64, rp.repo.CurrentEventID.Valid = eventID, true
		report.Events = append(report.Events, eventID)
	}

	changeID, err := s.changelog.AppendChange(cached.documentID, rp.eventID, result.Elements, s.clock.Now())
	if err != nil {
		return nil, cdmkn.NewStorageError("appending change", err)
	}
	report.Changes++
	s.logger.Info("change recorded", "path", path, "change", changeID, "event", rp.eventID, "elements", len(result.Elements))

	return &baseline{documentID: cached.documentID, content: content, modTime: p.ModTime()}, nil
}

// establish records the first sighting of a file. Its content becomes the
// starting point of the document's history; no change is written.
func (s *Scheduler) establish(rp *repoPass, p *cdmkn.Path, report *PassReport) (*baseline, error) {
	path := p.String()
	content, err := s.read(p)
	if err != nil {
		s.logger.Warn("skipping file", "path", path, "error", err)
		report.Skipped++
		return nil, nil
	}

	rel, _ := p.RelativeTo(rp.repo.AbsolutePath)
	docID, err := s.changelog.UpsertDocument(rp.repo.ID, rel, path)
	if err != nil {
		return nil, cdmkn.NewStorageError("registering document", err)
	}
	if err := s.changelog.SaveBaseline(docID, content); err != nil {
		return nil, cdmkn.NewStorageError("saving baseline", err)
	}
	report.Baselined++
	s.logger.Debug("baseline established", "path", path, "document", docID)

	return &baseline{documentID: docID, content: content, modTime: p.ModTime()}, nil
}

// read returns the text content of p. Content that is not UTF-8 or that
// grew past the size ceiling since the walk is reported as an IOError.
func (s *Scheduler) read(p *cdmkn.Path) (string, error) {
	f, err := s.fsmgr.Open(p)
	if err != nil {
		return "", &cdmkn.IOError{Path: p.String(), Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, cdmkn.MaxFileSize))
	if err != nil {
		return "", &cdmkn.IOError{Path: p.String(), Err: err}
	}
	if len(data) >= cdmkn.MaxFileSize {
		return "", &cdmkn.IOError{Path: p.String(), Err: fmt.Errorf("file grew past %d bytes", cdmkn.MaxFileSize)}
	}
	if !utf8.Valid(data) {
		return "", &cdmkn.IOError{Path: p.String(), Err: errors.New("not valid UTF-8 text")}
	}
	return string(data), nil
}

// commit folds the pass results into the cache. A completed full pass
// replaces the cache, so files that disappeared drop out of tracking.
func (s *Scheduler) commit(pass Pass, visited map[string]*baseline, dropped map[string]bool, complete bool) {
	if pass.Full && complete {
		s.cache = visited
		return
	}
	for path := range dropped {
		delete(s.cache, path)
	}
	for path, b := range visited {
		s.cache[path] = b
	}
}
