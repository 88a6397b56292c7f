package registry

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/github/go-spdx/v2/spdxexp"
)

// categorySlug matches category slugs such as "development-tools::testing".
var categorySlug = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*(::[a-z0-9]+(-[a-z0-9]+)*)*$`)

// knownBadges is the set of badge keys accepted in package metadata.
var knownBadges = map[string]struct{}{
	"appveyor":                          {},
	"azure-devops":                      {},
	"circle-ci":                         {},
	"cirrus-ci":                         {},
	"codecov":                           {},
	"coveralls":                         {},
	"gitlab":                            {},
	"is-it-maintained-issue-resolution": {},
	"is-it-maintained-open-issues":      {},
	"maintenance":                       {},
	"travis-ci":                         {},
}

// WarningChecker inspects metadata and collects non-fatal diagnostics.
// Warnings never fail a publish.
type WarningChecker struct {
	// Categories restricts categories to this set when non-empty.
	Categories map[string]struct{}
}

// NewWarningChecker returns a checker. With no categories, any well-formed slug
// is accepted.
func NewWarningChecker(categories ...string) *WarningChecker {
	c := &WarningChecker{}
	if len(categories) > 0 {
		c.Categories = make(map[string]struct{}, len(categories))
		for _, cat := range categories {
			c.Categories[cat] = struct{}{}
		}
	}
	return c
}

// Check returns the warnings for meta.
func (c *WarningChecker) Check(meta *RawMetadata) PublishWarnings {
	var w PublishWarnings

	for _, cat := range meta.Categories {
		if !categorySlug.MatchString(cat) {
			w.InvalidCategories = append(w.InvalidCategories, cat)
			continue
		}
		if c != nil && len(c.Categories) > 0 {
			if _, ok := c.Categories[cat]; !ok {
				w.InvalidCategories = append(w.InvalidCategories, cat)
			}
		}
	}

	badges := make([]string, 0, len(meta.Badges))
	for name := range meta.Badges {
		if _, ok := knownBadges[name]; !ok {
			badges = append(badges, name)
		}
	}
	sort.Strings(badges)
	if len(badges) > 0 {
		w.InvalidBadges = badges
	}

	if meta.License != "" {
		if ok, invalid := spdxexp.ValidateLicenses([]string{meta.License}); !ok {
			w.Other = append(w.Other, fmt.Sprintf("license %q is not a valid SPDX expression (%v)", meta.License, invalid))
		}
	}

	return w
}
