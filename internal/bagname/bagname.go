// Package bagname formats and decomposes preservation package directory
// names: <bag_prefix>_<id>-v<NN>-<LastName>-<fingerprint>_bag_<YYYYMMDD>
// (spec.md §4.7), and recognizes the looser naming regex spec.md §4.4 uses
// to recognize existing package directories during the Local probe and
// archived multi-part bags (bagNofM) produced by the bagger stage. Regex
// style ported from pkg/caryatid/vagrant_catalog.go's version-string
// parsing (parseVersionQueryString, NewComparableVersion).
package bagname

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// nameRegex is a variant of spec.md §4.4's local-probe naming pattern:
// \w*_\d+-v\d{2}-[A-Z][A-Za-z]+-[a-f0-9]{32}_bag\d*of?\d*_?\d*
// anchored at both ends, with named groups, versions of two or more
// digits, and the whole "of<total>" part optional.
var nameRegex = regexp.MustCompile(
	`^(?P<prefix>\w*)_(?P<id>\d+)-v(?P<version>\d{2,})-(?P<lastname>[A-Z][A-Za-z]+)-(?P<fp>[a-f0-9]{32})_bag(?P<bagnum>\d*)(?:of(?P<bagtotal>\d*))?_?(?P<date>\d*)$`,
)

// nonAlnum matches runs of non-alphanumerics; SlugifyLastName removes them,
// case preserved, per spec.md §4.7.
var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Decomposed is the recovered structure of a package name (spec.md §8,
// property 3: name decomposition round-trip).
type Decomposed struct {
	Prefix      string
	ArticleID   int
	Version     int
	LastName    string
	Fingerprint string
	BagCount    string // e.g. "1of3"; empty for a single-part bag
	Date        time.Time
	HasDate     bool
}

// SlugifyLastName strips non-alphanumerics from an author's last name,
// preserving case (spec.md §4.7).
func SlugifyLastName(lastName string) string {
	return nonAlnum.ReplaceAllString(lastName, "")
}

// VersionDirName renders version N as "vNN" (zero-padded for N<=9) or "vN"
// for N>=10 (spec.md §4.7).
func VersionDirName(version int) string {
	if version <= 9 {
		return fmt.Sprintf("v0%d", version)
	}
	return fmt.Sprintf("v%d", version)
}

// Format renders the canonical package directory name.
func Format(prefix string, articleID, version int, lastName, fingerprint string, date time.Time) string {
	v := VersionDirName(version)
	v = strings.TrimPrefix(v, "v")
	return fmt.Sprintf("%s_%d-v%s-%s-%s_bag_%s",
		prefix, articleID, v, SlugifyLastName(lastName), fingerprint, date.Format("20060102"))
}

// Decompose recovers (prefix, id, vNN, last_name, fingerprint, bag_count,
// date) from a package directory name, the round-trip inverse of Format
// (spec.md §8, property 3).
func Decompose(name string) (Decomposed, error) {
	m := nameRegex.FindStringSubmatch(name)
	if m == nil {
		return Decomposed{}, fmt.Errorf("bagname: %q does not match the package naming pattern", name)
	}
	groups := map[string]string{}
	for i, g := range nameRegex.SubexpNames() {
		if g != "" {
			groups[g] = m[i]
		}
	}

	id, err := strconv.Atoi(groups["id"])
	if err != nil {
		return Decomposed{}, fmt.Errorf("bagname: invalid article id in %q: %w", name, err)
	}
	version, err := strconv.Atoi(groups["version"])
	if err != nil {
		return Decomposed{}, fmt.Errorf("bagname: invalid version in %q: %w", name, err)
	}

	d := Decomposed{
		Prefix:      groups["prefix"],
		ArticleID:   id,
		Version:     version,
		LastName:    groups["lastname"],
		Fingerprint: groups["fp"],
	}

	if groups["bagnum"] != "" || groups["bagtotal"] != "" {
		d.BagCount = groups["bagnum"] + "of" + groups["bagtotal"]
	}

	if groups["date"] != "" {
		if t, err := time.Parse("20060102", groups["date"]); err == nil {
			d.Date = t
			d.HasDate = true
		}
	}

	return d, nil
}

// MatchesArticleVersion reports whether a package/bag name encodes the
// given article id and zero-padded version, the predicate used by all
// three Preservation Index probes (spec.md §4.4).
func MatchesArticleVersion(name string, articleID, version int) bool {
	idStr := strconv.Itoa(articleID)
	vStr := VersionDirName(version)
	return strings.Contains(name, idStr) && strings.Contains(name, vStr)
}

// fingerprintRegex extracts a fingerprint from a bag/object name via the
// "[a-f0-9]{32}_bag" pattern named in spec.md §4.4.
var fingerprintRegex = regexp.MustCompile(`[a-f0-9]{32}_bag`)

// ExtractFingerprint pulls the 32-hex fingerprint out of a bag name using
// the regex named in spec.md §4.4's final/staging remote probes.
func ExtractFingerprint(name string) (string, bool) {
	m := fingerprintRegex.FindString(name)
	if m == "" {
		return "", false
	}
	return strings.TrimSuffix(m, "_bag"), true
}
