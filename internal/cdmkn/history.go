package cdmkn

import (
	"fmt"
	"time"

	"cdmkn-go/internal/database/sqlc"
)

// HistoryEntry summarizes one change of a file for listing.
type HistoryEntry struct {
	ChangeID  int64
	EventID   int64
	CreatedAt time.Time
	Added     int
	Removed   int
	// Err is set when the stored change cannot be decoded. Other entries
	// remain browsable.
	Err error
}

// FileHistory returns up to limit changes of a file, newest first.
func (s *Service) FileHistory(absPath string, limit int) ([]*HistoryEntry, error) {
	s.logger.Debug("fetching file history", "path", absPath, "limit", limit)

	_, doc, err := s.locateDocument(absPath)
	if err != nil {
		return nil, err
	}

	changes, err := s.changelog.LatestChanges(doc.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading changes: %w", err)
	}

	entries := make([]*HistoryEntry, len(changes))
	for i, c := range changes {
		entry := &HistoryEntry{ChangeID: c.ID, EventID: c.EventID, CreatedAt: c.CreatedAt}
		elements, err := DecodeChange(c)
		if err != nil {
			entry.Err = err
		} else {
			for _, e := range elements {
				switch e.Tag {
				case TagAdd:
					entry.Added++
				case TagRemove:
					entry.Removed++
				}
			}
		}
		entries[i] = entry
	}
	return entries, nil
}

// Version is one decoded change of a document.
type Version struct {
	Change   *sqlc.Change
	Elements []ChangeElement
}

// Current returns the document text after the change.
func (v *Version) Current() string { return ReconstructCurrent(v.Elements) }

// Previous returns the document text before the change.
func (v *Version) Previous() string { return ReconstructPrevious(v.Elements) }

// Snippets returns the edited runs of the change.
func (v *Version) Snippets() []Snippet { return ExtractSnippets(v.Elements) }

// Version loads a single change of a file. The change must belong to the
// document at absPath.
func (s *Service) Version(absPath string, changeID int64) (*Version, error) {
	_, doc, err := s.locateDocument(absPath)
	if err != nil {
		return nil, err
	}

	change, err := s.changelog.GetChange(changeID)
	if err != nil {
		return nil, fmt.Errorf("loading change: %w", err)
	}
	if change == nil || change.DocumentID != doc.ID {
		return nil, invalidInputf("change %d does not belong to %s", changeID, absPath)
	}

	elements, err := DecodeChange(change)
	if err != nil {
		return nil, err
	}
	return &Version{Change: change, Elements: elements}, nil
}

// EventLog follows a repository's event chain from its current event back
// through parent links, returning at most limit events. A parent link that
// points at a missing event is reported as an error.
func (s *Service) EventLog(absPath string, limit int) ([]*sqlc.Event, error) {
	repo, err := s.changelog.FindRepositoryByPath(absPath)
	if err != nil {
		return nil, fmt.Errorf("finding repository: %w", err)
	}
	if repo == nil {
		return nil, invalidInputf("not a registered repository: %s", absPath)
	}

	var events []*sqlc.Event
	next := repo.CurrentEventID
	for next.Valid && len(events) < limit {
		event, err := s.changelog.GetEvent(next.Int64)
		if err != nil {
			return nil, fmt.Errorf("loading event %d: %w", next.Int64, err)
		}
		if event == nil {
			return events, fmt.Errorf("event chain references missing event %d", next.Int64)
		}
		events = append(events, event)
		next = event.ParentEventID
	}
	return events, nil
}
