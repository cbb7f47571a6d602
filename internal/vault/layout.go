package vault

import (
	"fmt"
	"path"
	"strings"
)

// Every backend uses the same object layout:
//
//	content/<checksum>
//	metadata/<installID>/<name>
//	metadata/<installID>/<name>.version   (filesystem and memory only)
//
// S3 keeps the version in object metadata instead of a sibling object.

func contentKey(checksum string) string {
	return path.Join("content", checksum)
}

func metadataKey(installID, name string) string {
	return path.Join("metadata", installID, name)
}

func versionKey(installID, name string) string {
	return metadataKey(installID, name) + ".version"
}

// checkSegment rejects identifiers that would escape their directory.
func checkSegment(kind, s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("invalid %s: %q", kind, s)
	}
	return nil
}

func checkMetadataName(installID, name string) error {
	if err := checkSegment("install id", installID); err != nil {
		return err
	}
	return checkSegment("metadata name", name)
}
