package registry

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a publish or lookup failure. The set is closed; every error
// leaving this package maps to exactly one Kind.
type Kind int

const (
	// KindInternal is any failure that does not fit another kind
	KindInternal Kind = iota
	// KindMalformedFrame indicates the request body does not follow the frame layout
	KindMalformedFrame
	// KindInvalidMetadata indicates the metadata segment is not valid JSON or lacks required fields
	KindInvalidMetadata
	// KindInvalidVersion indicates the version is not a semantic version
	KindInvalidVersion
	// KindDuplicateVersion indicates the (name, version) pair is already registered
	KindDuplicateVersion
	// KindNonExistentPackageInfo indicates no version of the package is registered
	KindNonExistentPackageInfo
	// KindNonExistentCrateVersion indicates the requested version is not registered
	KindNonExistentCrateVersion
	// KindStoreUnavailable indicates the registration store failed for infrastructure reasons
	KindStoreUnavailable
	// KindArchiveStoreFailed indicates the archive write failed after registration succeeded
	KindArchiveStoreFailed
)

func (k Kind) String() string {
	switch k {
	case KindMalformedFrame:
		return "malformed_frame"
	case KindInvalidMetadata:
		return "invalid_metadata"
	case KindInvalidVersion:
		return "invalid_version"
	case KindDuplicateVersion:
		return "duplicate_version"
	case KindNonExistentPackageInfo:
		return "non_existent_package_info"
	case KindNonExistentCrateVersion:
		return "non_existent_crate_version"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindArchiveStoreFailed:
		return "archive_store_failed"
	default:
		return "internal"
	}
}

// Status returns the HTTP status class for the kind.
func (k Kind) Status() int {
	switch k {
	case KindMalformedFrame, KindInvalidMetadata, KindInvalidVersion, KindDuplicateVersion:
		return http.StatusBadRequest
	case KindNonExistentPackageInfo, KindNonExistentCrateVersion:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Exposed reports whether the error message of this kind may be shown to callers.
// Server-side kinds are reported as an opaque "unexpected error".
func (k Kind) Exposed() bool {
	return k.Status() < http.StatusInternalServerError
}

// Sentinel errors returned by stores and matched with errors.Is
var (
	// ErrDuplicateVersion is returned by a RecordStore when the key is already occupied
	ErrDuplicateVersion = errors.New("version already exists")

	// ErrRecordNotFound is returned by a RecordStore when no record matches
	ErrRecordNotFound = errors.New("record not found")

	// ErrArchiveNotFound is returned by an ArchiveStore when no archive matches
	ErrArchiveNotFound = errors.New("archive not found")

	// ErrStoreUnavailable marks a transient registration store failure
	ErrStoreUnavailable = errors.New("registration store unavailable")

	// ErrShortFrame indicates a frame ended before a declared length was satisfied
	ErrShortFrame = errors.New("frame truncated")

	// ErrTrailingBytes indicates bytes after the archive segment in strict mode
	ErrTrailingBytes = errors.New("unexpected bytes after archive segment")
)

// Error is the error type returned by the publisher. Name and Version are
// filled in once the metadata has been parsed.
type Error struct {
	Kind    Kind
	Name    string
	Version string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindDuplicateVersion:
		return fmt.Sprintf("version %s for %s already exists", e.Version, e.Name)
	case KindNonExistentPackageInfo:
		return fmt.Sprintf("package info for %s does not exist", e.Name)
	case KindNonExistentCrateVersion:
		return fmt.Sprintf("version %s for %s does not exist", e.Version, e.Name)
	case KindMalformedFrame:
		return fmt.Sprintf("malformed publish frame: %v", e.Err)
	case KindInvalidMetadata:
		return fmt.Sprintf("invalid metadata: %v", e.Err)
	case KindInvalidVersion:
		return fmt.Sprintf("invalid version %q: %v", e.Version, e.Err)
	case KindStoreUnavailable:
		return fmt.Sprintf("registration of %s@%s failed: %v", e.Name, e.Version, e.Err)
	case KindArchiveStoreFailed:
		return fmt.Sprintf("archive for %s@%s could not be stored: %v", e.Name, e.Version, e.Err)
	default:
		if e.Err == nil {
			return "unexpected error"
		}
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind of err. Errors that are not *Error are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status returns the HTTP status for err.
func Status(err error) int {
	return KindOf(err).Status()
}

// Detail returns the caller-facing message for err. Server-side failures are
// never described beyond "unexpected error".
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind.Exposed() {
		return e.Error()
	}
	return "unexpected error"
}

func newError(kind Kind, name, version string, err error) *Error {
	return &Error{Kind: kind, Name: name, Version: version, Err: err}
}
