package protocol

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the kwcount release.
const Version = "v0.3.0"

// SchemaVersion versions the persisted run-history records.
const SchemaVersion = "v1.1.0"

// IsCompatibleSchema reports whether a stored record written with
// recordVersion can be read by a binary using currentVersion.
// Compatibility rules:
// - Major version must match exactly.
// - A record from a newer minor release is still readable; unknown fields
//   are ignored by the decoder.
func IsCompatibleSchema(recordVersion, currentVersion string) (bool, error) {
	if !semver.IsValid(recordVersion) {
		return false, fmt.Errorf("invalid record schema version: %q", recordVersion)
	}
	if !semver.IsValid(currentVersion) {
		return false, fmt.Errorf("invalid schema version: %q", currentVersion)
	}

	return semver.Major(recordVersion) == semver.Major(currentVersion), nil
}

// CompatibilityError returns a user-friendly message for an unreadable record.
func CompatibilityError(recordVersion, currentVersion string) string {
	return fmt.Sprintf(
		"history record schema %s cannot be read by schema %s (need %s.x.x)",
		recordVersion, currentVersion, semver.Major(currentVersion),
	)
}

// Newer reports whether a is a later version than b.
func Newer(a, b string) bool {
	return semver.Compare(a, b) > 0
}
