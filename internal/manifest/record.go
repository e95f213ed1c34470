package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// ErrMissingVersion is returned when the manifest lacks a version field.
var ErrMissingVersion = errors.New("manifest has no version field")

// AssetEntry describes one architecture's download location and content hash.
type AssetEntry struct {
	// URL is the asset download location.
	URL string `json:"url"`
	// Hash is the content hash with the literal "SHA256:" prefix.
	Hash string `json:"hash"`
}

// Record is the persisted package manifest. Top-level fields other than
// version and architecture are carried through verbatim: the record is
// merged on update, never replaced.
type Record struct {
	// Version is the validated MAJOR.MINOR.PATCH version string.
	Version string
	// Architecture maps architecture keys to their asset entries.
	Architecture map[string]AssetEntry
	// extra holds unrecognized top-level fields exactly as read from disk.
	extra map[string]json.RawMessage
}

// UnmarshalJSON decodes the known fields and keeps everything else raw.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	rawVersion, ok := fields["version"]
	if !ok {
		return ErrMissingVersion
	}

	if err := json.Unmarshal(rawVersion, &r.Version); err != nil {
		return fmt.Errorf("decode version field: %w", err)
	}

	delete(fields, "version")

	if rawArchitecture, ok := fields["architecture"]; ok {
		if err := json.Unmarshal(rawArchitecture, &r.Architecture); err != nil {
			return fmt.Errorf("decode architecture field: %w", err)
		}

		delete(fields, "architecture")
	}

	if r.Architecture == nil {
		r.Architecture = make(map[string]AssetEntry)
	}

	r.extra = fields

	return nil
}

// MarshalJSON re-assembles the known fields with the preserved raw ones.
// Key order is stable because maps marshal with sorted keys.
func (r Record) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(r.extra)+2)
	for key, value := range r.extra {
		fields[key] = value
	}

	fields["version"] = r.Version
	fields["architecture"] = r.Architecture

	return json.Marshal(fields)
}

// Merge returns a new record equal to the input except the version is
// replaced and, for each architecture present in archResults, that entry
// is replaced or inserted. The input record is not mutated.
func Merge(record *Record, newVersion string, archResults map[string]AssetEntry) *Record {
	merged := &Record{
		Version:      newVersion,
		Architecture: make(map[string]AssetEntry, len(record.Architecture)+len(archResults)),
		extra:        make(map[string]json.RawMessage, len(record.extra)),
	}

	maps.Copy(merged.Architecture, record.Architecture)
	maps.Copy(merged.Architecture, archResults)
	maps.Copy(merged.extra, record.extra)

	return merged
}
