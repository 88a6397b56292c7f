package registry

import (
	"time"

	"github.com/google/uuid"
)

// Dependency kinds
const (
	DependencyKindNormal = "normal"
	DependencyKindDev    = "dev"
	DependencyKindBuild  = "build"
)

// Dependency is one entry of the deps list submitted with a publish.
type Dependency struct {
	Name               string   `json:"name"`
	VersionReq         string   `json:"version_req"`
	Features           []string `json:"features"`
	Optional           bool     `json:"optional"`
	DefaultFeatures    bool     `json:"default_features"`
	Target             string   `json:"target,omitempty"`
	Kind               string   `json:"kind,omitempty"`
	Registry           string   `json:"registry,omitempty"`
	ExplicitNameInToml string   `json:"explicit_name_in_toml,omitempty"`
}

// RawMetadata is the package description as submitted. It lives only for the
// duration of one publish request.
type RawMetadata struct {
	Name          string                       `json:"name"`
	Vers          string                       `json:"vers"`
	Deps          []Dependency                 `json:"deps"`
	Features      map[string][]string          `json:"features"`
	Authors       []string                     `json:"authors"`
	Description   string                       `json:"description,omitempty"`
	Documentation string                       `json:"documentation,omitempty"`
	Homepage      string                       `json:"homepage,omitempty"`
	Readme        string                       `json:"readme,omitempty"`
	ReadmeFile    string                       `json:"readme_file,omitempty"`
	Keywords      []string                     `json:"keywords"`
	Categories    []string                     `json:"categories"`
	License       string                       `json:"license,omitempty"`
	LicenseFile   string                       `json:"license_file,omitempty"`
	Repository    string                       `json:"repository,omitempty"`
	Badges        map[string]map[string]string `json:"badges,omitempty"`
	Links         string                       `json:"links,omitempty"`
	RustVersion   string                       `json:"rust_version,omitempty"`
}

// PackageRecord is the persisted, immutable description of one published
// version. Exactly one record exists per (Name, Version).
type PackageRecord struct {
	ID            uuid.UUID                    `json:"id"`
	Name          string                       `json:"name"`
	Version       string                       `json:"vers"`
	Checksum      string                       `json:"cksum"`
	PURL          string                       `json:"purl"`
	Deps          []Dependency                 `json:"deps"`
	Features      map[string][]string          `json:"features"`
	Authors       []string                     `json:"authors"`
	Description   string                       `json:"description,omitempty"`
	Documentation string                       `json:"documentation,omitempty"`
	Homepage      string                       `json:"homepage,omitempty"`
	Readme        string                       `json:"readme,omitempty"`
	ReadmeFile    string                       `json:"readme_file,omitempty"`
	Keywords      []string                     `json:"keywords"`
	Categories    []string                     `json:"categories"`
	License       string                       `json:"license,omitempty"`
	LicenseFile   string                       `json:"license_file,omitempty"`
	Repository    string                       `json:"repository,omitempty"`
	Badges        map[string]map[string]string `json:"badges,omitempty"`
	Links         string                       `json:"links,omitempty"`
	RustVersion   string                       `json:"rust_version,omitempty"`
	CreatedAt     time.Time                    `json:"created_at"`
}

// Key returns the registration key of the record.
func (r *PackageRecord) Key() RecordKey {
	return RecordKey{Name: r.Name, Version: r.Version}
}

// Clone returns a deep copy so stores never share slices or maps with callers.
func (r *PackageRecord) Clone() *PackageRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Deps = cloneDeps(r.Deps)
	c.Features = cloneFeatures(r.Features)
	c.Authors = cloneStrings(r.Authors)
	c.Keywords = cloneStrings(r.Keywords)
	c.Categories = cloneStrings(r.Categories)
	c.Badges = cloneBadges(r.Badges)
	return &c
}

// RecordKey identifies a registration.
type RecordKey struct {
	Name    string
	Version string
}

func (k RecordKey) String() string {
	return k.Name + "@" + k.Version
}

// PublishWarnings is the diagnostics bag returned with a successful publish.
type PublishWarnings struct {
	InvalidCategories []string `json:"invalid_categories"`
	InvalidBadges     []string `json:"invalid_badges"`
	Other             []string `json:"other"`
}

// Empty reports whether no diagnostics were collected.
func (w PublishWarnings) Empty() bool {
	return len(w.InvalidCategories) == 0 && len(w.InvalidBadges) == 0 && len(w.Other) == 0
}

// PublishResult is returned by a successful publish.
type PublishResult struct {
	Record   *PackageRecord
	Warnings PublishWarnings
}

// PackageInfo lists the registered versions of one package, oldest first.
type PackageInfo struct {
	Name     string
	Versions []*PackageRecord
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneDeps(in []Dependency) []Dependency {
	if in == nil {
		return nil
	}
	out := make([]Dependency, len(in))
	for i, d := range in {
		d.Features = cloneStrings(d.Features)
		out[i] = d
	}
	return out
}

func cloneFeatures(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = cloneStrings(v)
	}
	return out
}

func cloneBadges(in map[string]map[string]string) map[string]map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]map[string]string, len(in))
	for k, attrs := range in {
		m := make(map[string]string, len(attrs))
		for ak, av := range attrs {
			m[ak] = av
		}
		out[k] = m
	}
	return out
}
