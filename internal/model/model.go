// Package model holds the core data types shared across the ingestion
// pipeline: catalog records, fingerprints, probe results, curation matches,
// and preservation packages.
package model

import (
	"strconv"
	"time"
)

// FileRef describes a single downloadable file attached to an ItemVersion.
type FileRef struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
	IsLinkOnly  bool   `json:"is_link_only"`
	SuppliedMD5 string `json:"supplied_md5"`
	ComputedMD5 string `json:"computed_md5"`
	Size        int64  `json:"size"`
}

// ExpectedMD5 returns the hash this file's bytes must match: the catalog's
// supplied hash if present, otherwise the catalog's computed hash.
func (f FileRef) ExpectedMD5() string {
	if f.SuppliedMD5 != "" {
		return f.SuppliedMD5
	}
	return f.ComputedMD5
}

// ItemVersion is a single version of a figshare article as fetched from the
// catalog, plus the bookkeeping fields the pipeline attaches along the way.
type ItemVersion struct {
	ID                int
	Version           int
	Size              int64
	Files             []FileRef
	Authors           []Author
	License           map[string]interface{}
	HasLinkedFile     bool
	IsMetadataRecord  bool
	CurationStatus    string
	Description       interface{}            `json:"description"`
	FundingList       interface{}            `json:"funding_list"`
	RelatedMaterials  interface{}            `json:"related_materials"`
	Raw               map[string]interface{} // full catalog payload, used only for display/METADATA write

	// Pipeline bookkeeping, stripped before METADATA JSON is written (spec §4.7).
	Matched               bool
	CurationInfo           *CurationMatch
	TotalNumFiles          int
	FileSizeSum            int64
	VersionMD5             string
	RedataDepositReviewFile string
	DepositAgreementFile   string
	TrelloFile             string
	AuthorDir              string
}

// Author is an ordered author entry; LastName feeds the package name slot.
type Author struct {
	FullName string `json:"full_name"`
	LastName string `json:"last_name"`
}

// Collection is an ItemVersion plus its ordered article list. License
// defaults to CC0 when the catalog payload omits one (spec §3, §4.9).
type Collection struct {
	ItemVersion
	Articles []int
}

// Fingerprint is the 32-hex MD5 of canonicalized reduced metadata (spec §4.3).
type Fingerprint string

// Origin identifies which store a PreservedEntry was observed in.
type Origin string

const (
	OriginFinalRemote   Origin = "final_remote"
	OriginStagingRemote Origin = "staging_remote"
	OriginLocal         Origin = "local"
)

// PreservedEntry is one probe hit: a fingerprint and size seen at an origin.
type PreservedEntry struct {
	Fingerprint Fingerprint
	Size        int64
	Origin      Origin
}

// CurationMatch is the result of scanning the curation tree for one
// item-version's reviewer artifacts (spec §4.5).
type CurationMatch struct {
	AuthorDir           string
	VersionDir          string
	HasDepositAgreement bool
	HasReviewDoc        bool
	HasTrelloDoc        bool
}

// Complete reports whether all three required review artifacts were found.
func (c CurationMatch) Complete() bool {
	return c.HasDepositAgreement && c.HasReviewDoc && c.HasTrelloDoc
}

// PreservationPackage names and locates the on-disk directory produced by
// the Package Builder (spec §4.7).
type PreservationPackage struct {
	Root        string // absolute path to <prefix>_<id>-v<NN>-<LastName>-<fp>_bag_<YYYYMMDD>
	ArticleID   int
	Version     int
	LastName    string
	Fingerprint Fingerprint
	Date        time.Time
}

// VersionDir is the "vNN" subdirectory name.
func (p PreservationPackage) VersionDir() string {
	return VersionDirName(p.Version)
}

// VersionDirName zero-pads versions <= 9 and uses decimal otherwise (spec §4.7).
func VersionDirName(version int) string {
	if version <= 9 {
		return "v0" + strconv.Itoa(version)
	}
	return "v" + strconv.Itoa(version)
}
