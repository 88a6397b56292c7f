package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/Masterminds/semver/v3"
)

// MaxNameLength is the longest accepted package name.
const MaxNameLength = 64

// packageName is an ASCII letter followed by letters, digits, '-' or '_'.
var packageName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

var (
	errMissingName    = errors.New("name is required")
	errMissingVersion = errors.New("vers is required")
	errInvalidUTF8    = errors.New("metadata is not valid UTF-8")
)

// ParseMetadata decodes the metadata segment of a publish frame. The name and
// vers fields are required and vers must be a strict semantic version.
func ParseMetadata(data []byte) (*RawMetadata, *semver.Version, error) {
	if !utf8.Valid(data) {
		return nil, nil, newError(KindInvalidMetadata, "", "", errInvalidUTF8)
	}

	var meta RawMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, nil, newError(KindInvalidMetadata, "", "", err)
	}

	// encoding/json matches keys case-insensitively; the registration key
	// must come from the exact "name" and "vers" members.
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, nil, newError(KindInvalidMetadata, "", "", err)
	}

	meta.Name, meta.Vers = "", ""
	if err := decodeKey(members["name"], &meta.Name); err != nil {
		return nil, nil, newError(KindInvalidMetadata, "", "", err)
	}
	if err := decodeKey(members["vers"], &meta.Vers); err != nil {
		return nil, nil, newError(KindInvalidMetadata, meta.Name, "", err)
	}

	if meta.Name == "" {
		return nil, nil, newError(KindInvalidMetadata, "", meta.Vers, errMissingName)
	}
	if err := ValidateName(meta.Name); err != nil {
		return nil, nil, newError(KindInvalidMetadata, "", meta.Vers, err)
	}
	if meta.Vers == "" {
		return nil, nil, newError(KindInvalidMetadata, meta.Name, "", errMissingVersion)
	}

	version, err := semver.StrictNewVersion(meta.Vers)
	if err != nil {
		return nil, nil, newError(KindInvalidVersion, meta.Name, meta.Vers, err)
	}

	return &meta, version, nil
}

// ValidateName checks a package name against the registry naming rules.
func ValidateName(name string) error {
	if len(name) > MaxNameLength {
		return fmt.Errorf("name %q is longer than %d characters", name, MaxNameLength)
	}
	if !packageName.MatchString(name) {
		return fmt.Errorf("name %q must start with an ASCII letter and contain only letters, digits, '-' or '_'", name)
	}
	return nil
}

func decodeKey(raw json.RawMessage, dst *string) error {
	if raw == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
