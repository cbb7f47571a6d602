package cdmkn

import (
	"fmt"
	"io/fs"
)

// MaxFileSize is the size ceiling for tracked files. Files of this size or
// larger are skipped on every pass without error.
const MaxFileSize = 200_000

// IsValidFile reports whether an entry is eligible for tracking: a regular
// file smaller than MaxFileSize.
func IsValidFile(info fs.FileInfo) bool {
	if info == nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() < MaxFileSize
}

// RepoStatus is the lifecycle state of a watched repository.
type RepoStatus int64

const (
	// RepoInactive repositories are skipped by the scheduler.
	RepoInactive RepoStatus = iota
	// RepoStarting repositories are watched but have not completed a full pass yet.
	RepoStarting
	// RepoActive repositories have completed at least one full pass.
	RepoActive
)

func (s RepoStatus) String() string {
	switch s {
	case RepoInactive:
		return "inactive"
	case RepoStarting:
		return "starting"
	case RepoActive:
		return "active"
	default:
		return fmt.Sprintf("status(%d)", int64(s))
	}
}

// Watched reports whether the scheduler should visit repositories in this state.
func (s RepoStatus) Watched() bool {
	return s == RepoStarting || s == RepoActive
}

// Baseline is the last known full content of a document.
type Baseline struct {
	DocumentID int64
	Content    string
}
