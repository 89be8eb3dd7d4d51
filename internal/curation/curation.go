// Package curation implements the Curation Matcher (spec.md §4.5): it
// scans the curation tree for an item's author-folder and version
// subfolder, and validates the presence of the three required review
// artifacts. Directory-walk style adapted from
// pkg/caryatid/vagrant_box.go's archive-walking loop, translated to
// filepath.WalkDir over a real filesystem tree instead of a tar stream.
package curation

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/UAL-RE/ReBACH/internal/model"
)

// Match scans root for the author directory containing articleID as an
// underscore-split token, then the vNN subdirectory, then UAL_RDM's
// required review artifacts (spec.md §4.5, §3 invariant 5).
//
// Absence of the author directory, the vNN subdirectory, or UAL_RDM marks
// the version unmatched (ok=false). Presence of all three but missing
// review artifacts returns a CurationMatch with Complete()==false so the
// caller can abort packaging for that version (spec.md §4.5).
func Match(root string, articleID, version int) (match model.CurationMatch, ok bool, err error) {
	authorDir, found, err := findAuthorDir(root, articleID)
	if err != nil {
		return model.CurationMatch{}, false, err
	}
	if !found {
		return model.CurationMatch{}, false, nil
	}

	versionDirName := model.VersionDirName(version)
	versionDirPath := filepath.Join(root, authorDir, versionDirName)
	info, err := os.Stat(versionDirPath)
	if err != nil || !info.IsDir() {
		return model.CurationMatch{}, false, nil
	}

	ualRDMPath := filepath.Join(versionDirPath, "UAL_RDM")
	info, err = os.Stat(ualRDMPath)
	if err != nil || !info.IsDir() {
		return model.CurationMatch{}, false, nil
	}

	match = model.CurationMatch{AuthorDir: authorDir, VersionDir: versionDirName}
	entries, err := os.ReadDir(ualRDMPath)
	if err != nil {
		return model.CurationMatch{}, false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		classify(strings.ToLower(e.Name()), &match)
	}

	return match, true, nil
}

// classify sets the three required-artifact flags by case-insensitive name
// substring rules (spec.md §3 invariant 5). name is already lower-cased.
func classify(name string, match *model.CurationMatch) {
	if strings.Contains(name, "deposit agreement") || strings.Contains(name, "deposit_agreement") {
		match.HasDepositAgreement = true
	}
	if strings.Contains(name, "redata-depositreview") {
		match.HasReviewDoc = true
	}
	if strings.HasSuffix(name, "trello.pdf") {
		match.HasTrelloDoc = true
	}
}

// findAuthorDir picks the first child of root whose underscore-split name
// contains articleID as a token (spec.md §4.5 step 1; spec.md §9's open
// question on first-match-vs-exactly-one is resolved as first-match).
func findAuthorDir(root string, articleID int) (string, bool, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false, err
	}
	idStr := strconv.Itoa(articleID)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, token := range strings.Split(e.Name(), "_") {
			if token == idStr {
				return e.Name(), true, nil
			}
		}
	}
	return "", false, nil
}

// UALRDMBytes sums the byte size of all files under the matched version's
// UAL_RDM directory, for the Space Preflight (spec.md §4.6).
func UALRDMBytes(root string, match model.CurationMatch) (int64, error) {
	ualRDMPath := filepath.Join(root, match.AuthorDir, match.VersionDir, "UAL_RDM")
	var total int64
	err := filepath.WalkDir(ualRDMPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
