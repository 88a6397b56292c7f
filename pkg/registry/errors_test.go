package registry

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind    Kind
		status  int
		exposed bool
	}{
		{KindMalformedFrame, http.StatusBadRequest, true},
		{KindInvalidMetadata, http.StatusBadRequest, true},
		{KindInvalidVersion, http.StatusBadRequest, true},
		{KindDuplicateVersion, http.StatusBadRequest, true},
		{KindNonExistentPackageInfo, http.StatusNotFound, true},
		{KindNonExistentCrateVersion, http.StatusNotFound, true},
		{KindStoreUnavailable, http.StatusInternalServerError, false},
		{KindArchiveStoreFailed, http.StatusInternalServerError, false},
		{KindInternal, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.kind.Status())
			assert.Equal(t, tt.exposed, tt.kind.Exposed())
		})
	}
}

func TestErrorMessages(t *testing.T) {
	dup := newError(KindDuplicateVersion, "demo", "1.0.0", ErrDuplicateVersion)
	assert.Equal(t, "version 1.0.0 for demo already exists", dup.Error())
	assert.Equal(t, dup.Error(), Detail(dup))
	assert.True(t, errors.Is(dup, ErrDuplicateVersion))

	missing := newError(KindNonExistentPackageInfo, "demo", "", ErrRecordNotFound)
	assert.Equal(t, "package info for demo does not exist", Detail(missing))

	missingVersion := newError(KindNonExistentCrateVersion, "demo", "2.0.0", ErrRecordNotFound)
	assert.Equal(t, "version 2.0.0 for demo does not exist", Detail(missingVersion))
}

func TestDetailHidesServerErrors(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:5432: connection refused")

	for _, err := range []error{
		newError(KindStoreUnavailable, "demo", "1.0.0", cause),
		newError(KindArchiveStoreFailed, "demo", "1.0.0", cause),
		cause,
	} {
		assert.Equal(t, "unexpected error", Detail(err))
		assert.Equal(t, http.StatusInternalServerError, Status(err))
	}

	// The cause stays available for logging.
	err := newError(KindStoreUnavailable, "demo", "1.0.0", cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, cause))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", newError(KindInvalidVersion, "demo", "one", errors.New("bad")))
	assert.Equal(t, KindInvalidVersion, KindOf(err))
	assert.Equal(t, http.StatusBadRequest, Status(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
