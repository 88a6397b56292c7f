package registry

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadata(t *testing.T) {
	data := []byte(`{
		"name": "demo",
		"vers": "1.2.3-beta.1+build.5",
		"deps": [{"name": "serde", "version_req": "^1.0", "features": ["derive"], "optional": false, "default_features": true, "kind": "normal"}],
		"features": {"default": ["std"]},
		"authors": ["someone"],
		"description": "a demo",
		"license": "MIT OR Apache-2.0",
		"keywords": ["demo"],
		"categories": ["development-tools"],
		"unknown_field": {"ignored": true}
	}`)

	meta, version, err := ParseMetadata(data)
	require.NoError(t, err)

	assert.Equal(t, "demo", meta.Name)
	assert.Equal(t, "1.2.3-beta.1+build.5", version.Original())
	assert.Equal(t, uint64(1), version.Major())
	assert.Equal(t, "beta.1", version.Prerelease())
	require.Len(t, meta.Deps, 1)
	assert.Equal(t, "serde", meta.Deps[0].Name)
	assert.Equal(t, []string{"derive"}, meta.Deps[0].Features)
	assert.Equal(t, DependencyKindNormal, meta.Deps[0].Kind)
	assert.Equal(t, []string{"std"}, meta.Features["default"])
	assert.Equal(t, "MIT OR Apache-2.0", meta.License)
}

func TestParseMetadataErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind Kind
	}{
		{"not json", `not json`, KindInvalidMetadata},
		{"empty", ``, KindInvalidMetadata},
		{"wrong type", `{"name": 5, "vers": "1.0.0"}`, KindInvalidMetadata},
		{"missing name", `{"vers": "1.0.0"}`, KindInvalidMetadata},
		{"blank name", `{"name": "  ", "vers": "1.0.0"}`, KindInvalidMetadata},
		{"missing vers", `{"name": "demo"}`, KindInvalidMetadata},
		{"not semver", `{"name": "demo", "vers": "one"}`, KindInvalidVersion},
		{"partial semver", `{"name": "demo", "vers": "1.0"}`, KindInvalidVersion},
		{"leading v", `{"name": "demo", "vers": "v1.0.0"}`, KindInvalidVersion},
		{"name with dot dot", `{"name": "a/../b", "vers": "1.0.0"}`, KindInvalidMetadata},
		{"name starting with dot dot", `{"name": "../x", "vers": "1.0.0"}`, KindInvalidMetadata},
		{"name with slash", `{"name": "a/b", "vers": "1.0.0"}`, KindInvalidMetadata},
		{"name of dots", `{"name": "../../..", "vers": "1.0.0"}`, KindInvalidMetadata},
		{"name starting with digit", `{"name": "1demo", "vers": "1.0.0"}`, KindInvalidMetadata},
		{"name with space", `{"name": "de mo", "vers": "1.0.0"}`, KindInvalidMetadata},
		{"non ascii name", `{"name": "démo", "vers": "1.0.0"}`, KindInvalidMetadata},
		{"upper case name key", `{"NAME": "demo", "vers": "1.0.0"}`, KindInvalidMetadata},
		{"upper case vers key", `{"name": "demo", "Vers": "1.0.0"}`, KindInvalidMetadata},
		{"invalid utf8", "{\"name\": \"de\xffmo\", \"vers\": \"1.0.0\"}", KindInvalidMetadata},
		{"null name", `{"name": null, "vers": "1.0.0"}`, KindInvalidMetadata},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, version, err := ParseMetadata([]byte(tt.data))
			require.Error(t, err)
			assert.Nil(t, meta)
			assert.Nil(t, version)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, 400, Status(err))
		})
	}
}

func TestParseMetadataNames(t *testing.T) {
	for _, name := range []string{"a", "serde_json", "Foo-Bar", "x86_64-tools", strings.Repeat("a", MaxNameLength)} {
		t.Run(name, func(t *testing.T) {
			meta, _, err := ParseMetadata([]byte(fmt.Sprintf(`{"name": %q, "vers": "1.0.0"}`, name)))
			require.NoError(t, err)
			assert.Equal(t, name, meta.Name)
		})
	}

	_, _, err := ParseMetadata([]byte(fmt.Sprintf(`{"name": %q, "vers": "1.0.0"}`, strings.Repeat("a", MaxNameLength+1))))
	require.Error(t, err)
	assert.Equal(t, KindInvalidMetadata, KindOf(err))
}

func TestParseMetadataExactKeys(t *testing.T) {
	// A differently cased duplicate must not replace the registration key.
	meta, version, err := ParseMetadata([]byte(`{"name": "demo", "NAME": "other", "vers": "1.0.0", "VERS": "9.9.9"}`))
	require.NoError(t, err)
	assert.Equal(t, "demo", meta.Name)
	assert.Equal(t, "1.0.0", version.Original())
}
