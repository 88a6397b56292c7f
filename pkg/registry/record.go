package registry

import (
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	packageurl "github.com/package-url/packageurl-go"
)

// BuildRecord assembles the persisted record from parsed metadata and the
// archive checksum. Name and version are copied verbatim.
func BuildRecord(meta *RawMetadata, version *semver.Version, checksum string) *PackageRecord {
	vers := meta.Vers
	if version != nil {
		vers = version.Original()
	}

	record := &PackageRecord{
		ID:            uuid.New(),
		Name:          meta.Name,
		Version:       vers,
		Checksum:      checksum,
		PURL:          PackageURL(meta.Name, vers),
		Deps:          meta.Deps,
		Features:      meta.Features,
		Authors:       meta.Authors,
		Description:   meta.Description,
		Documentation: meta.Documentation,
		Homepage:      meta.Homepage,
		Readme:        meta.Readme,
		ReadmeFile:    meta.ReadmeFile,
		Keywords:      meta.Keywords,
		Categories:    meta.Categories,
		License:       meta.License,
		LicenseFile:   meta.LicenseFile,
		Repository:    meta.Repository,
		Badges:        meta.Badges,
		Links:         meta.Links,
		RustVersion:   meta.RustVersion,
		CreatedAt:     time.Now().UTC(),
	}
	// The record must not share slices or maps with the request.
	return record.Clone()
}

// PackageURL returns the package URL of a registered version,
// e.g. pkg:cargo/demo@1.0.0.
func PackageURL(name, version string) string {
	return packageurl.NewPackageURL(packageurl.TypeCargo, "", name, version, nil, "").ToString()
}
