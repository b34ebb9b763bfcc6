package policy

import (
	"context"
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.trai.ch/ybt/internal/core/domain"
)

// knownLicenses is the OSI approved list plus two catch-all entries.
var knownLicenses = mapset.NewThreadUnsafeSet(
	"0BSD", "AAL", "AFL-3.0", "AGPL-3.0", "APL-1.0", "APSL-2.0", "Apache-2.0",
	"Artistic-2.0", "BSD-2-Clause", "BSD-2-Clause-Patent", "BSD-3-Clause",
	"BSL-1.0", "CATOSL-1.1", "CDDL-1.0", "CECILL-2.1", "CNRI-Python",
	"CPAL-1.0", "CUA-OPL-1.0", "ECL-2.0", "EFL-2.0", "EPL-1.0", "EPL-2.0",
	"EUDatagrid", "EUPL-1.1", "EUPL-1.2", "Entessa", "Fair", "Frameworx-1.0",
	"GPL-2.0", "GPL-3.0", "HPND", "IPA", "IPL-1.0", "ISC", "LGPL-2.1",
	"LGPL-3.0", "LPL-1.02", "LPPL-1.3c", "LiLiQ-P", "LiLiQ-R", "LiLiQ-R+",
	"MIT", "MIT-0", "MPL-1.0", "MPL-1.1", "MPL-2.0", "MS-PL", "MS-RL", "MirOS",
	"Motosoto", "Multics", "NASA-1.3", "NCSA", "NGPL", "NPOSL-3.0", "NTP",
	"Naumen", "Nokia", "OCLC-2.0", "OFL-1.1", "OGTSL", "OSL-3.0", "PHP-3.0",
	"PostgreSQL", "Python-2.0", "QPL-1.0", "RPL-1.5", "RPSL-1.0", "RSCPL",
	"SPL-1.0", "SimPL-2.0", "Sleepycat", "UPL", "Unlicense", "VSL-1.0", "W3C",
	"WXwindows", "Watcom-1.0", "Xnet", "ZPL-2.0", "Zlib",
	"Other", "Commercial",
)

// StandardLicenses rejects licenses outside the known list.
type StandardLicenses struct{}

// Name implements Policy.
func (StandardLicenses) Name() string { return domain.PolicyStandardLicenses }

// Check implements Policy.
func (StandardLicenses) Check(_ context.Context, t *domain.Target, _ *domain.Graph) ([]string, error) {
	var reasons []string
	for _, l := range t.Licenses {
		if !knownLicenses.Contains(l) {
			reasons = append(reasons, "unknown license: "+l)
		}
	}
	return reasons, nil
}

// LicenseWhitelist requires the licenses of a target and all of its
// transitive dependencies to come from an allowed set.
type LicenseWhitelist struct {
	name    string
	allowed mapset.Set[string]
}

// NewLicenseWhitelist creates a whitelist policy called name.
func NewLicenseWhitelist(name string, allowed []string) *LicenseWhitelist {
	return &LicenseWhitelist{name: name, allowed: mapset.NewThreadUnsafeSet(allowed...)}
}

// Name implements Policy.
func (p *LicenseWhitelist) Name() string { return p.name }

// Check implements Policy.
func (p *LicenseWhitelist) Check(_ context.Context, t *domain.Target, g *domain.Graph) ([]string, error) {
	licenses := mapset.NewThreadUnsafeSet(t.Licenses...)
	for _, dep := range g.ClosureOf([]*domain.Target{t}) {
		licenses.Append(dep.Licenses...)
	}

	invalid := licenses.Difference(p.allowed).ToSlice()
	if len(invalid) == 0 {
		return nil, nil
	}
	slices.Sort(invalid)
	return []string{fmt.Sprintf("invalid licenses: %s", strings.Join(invalid, ", "))}, nil
}
