package cdmkn

import "fmt"

// Restore overwrites the file at absPath with the content it had at a
// change. With previous set, the content from just before the change is
// written instead.
func (s *Service) Restore(absPath string, changeID int64, previous bool) error {
	s.logger.Info("restore started", "path", absPath, "change", changeID, "previous", previous)

	v, err := s.Version(absPath, changeID)
	if err != nil {
		return err
	}

	content := v.Current()
	if previous {
		content = v.Previous()
	}

	if err := s.fsmgr.WriteFile(absPath, []byte(content)); err != nil {
		return &IOError{Path: absPath, Err: fmt.Errorf("writing restored content: %w", err)}
	}

	s.logger.Info("restore finished", "path", absPath, "bytes", len(content))
	return nil
}
