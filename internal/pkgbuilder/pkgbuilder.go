// Package pkgbuilder implements the Package Builder (spec.md §4.7): it
// creates the <package>/vNN/{DATA,METADATA,UAL_RDM} directory layout,
// streams file downloads with per-file MD5 verification, copies the
// curation UAL_RDM tree, and writes the cleaned version METADATA JSON.
// The curation copy and the on-disk idempotency check use
// internal/rebachutil's CopyFile/Md5sum, adapted from the teacher's
// internal/util/util.go (CopyFile/Sha1sum, generalized from SHA1 to MD5
// to match the Fingerprint's hash algorithm); the in-flight download hash
// below stays local because it must tee through io.MultiWriter while the
// file is still being written, which rebachutil.Md5sum can't do.
package pkgbuilder

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/UAL-RE/ReBACH/internal/bagname"
	"github.com/UAL-RE/ReBACH/internal/model"
	"github.com/UAL-RE/ReBACH/internal/rebachutil"
	"github.com/UAL-RE/ReBACH/internal/retry"
)

const downloadChunkSize = 8 * 1024

// helperFields are stripped from the version JSON before it is written to
// METADATA/<id>.json (spec.md §4.7).
var helperFields = []string{
	"matched", "curation_info", "total_num_files", "file_size_sum",
	"version_md5", "redata_deposit_review_file", "deposit_agreement_file",
	"trello_file", "author_dir",
}

// Request describes one package to build.
type Request struct {
	Root          string // preservation storage root
	Prefix        string // bag_name_prefix
	ArticleID     int
	Version       int
	LastName      string
	Fingerprint   string
	Date          time.Time
	Files         []model.FileRef
	MetadataJSON  map[string]interface{} // full version payload; helper fields stripped before write
	CurationRoot  string                 // curation storage root
	CurationMatch model.CurationMatch
	Token         string
	Retries       int
	RetriesWait   time.Duration
}

// Builder assembles preservation packages on disk.
type Builder struct {
	httpClient *http.Client
}

// New builds a Builder. A nil httpClient gets a sane default.
func New(httpClient *http.Client) *Builder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 0} // streamed downloads: no blanket deadline
	}
	return &Builder{httpClient: httpClient}
}

// Result is the on-disk package produced by Build.
type Result struct {
	Package model.PreservationPackage
	Path    string
}

// Build creates (or verifies/reuses) the package directory for req,
// downloading files, copying curation artifacts, and writing METADATA
// JSON. On any integrity failure the partially written package directory
// is removed entirely and the error is returned (spec.md §3 invariant 3,
// §4.7's rollback contract).
func (b *Builder) Build(ctx context.Context, req Request) (Result, error) {
	name := bagname.Format(req.Prefix, req.ArticleID, req.Version, req.LastName, req.Fingerprint, req.Date)
	packagePath := filepath.Join(req.Root, name)
	versionDirName := bagname.VersionDirName(req.Version)
	versionDir := filepath.Join(packagePath, versionDirName)
	dataDir := filepath.Join(versionDir, "DATA")
	metadataDir := filepath.Join(versionDir, "METADATA")
	ualRDMDir := filepath.Join(versionDir, "UAL_RDM")

	result := Result{
		Path: packagePath,
		Package: model.PreservationPackage{
			Root:        packagePath,
			ArticleID:   req.ArticleID,
			Version:     req.Version,
			LastName:    req.LastName,
			Fingerprint: model.Fingerprint(req.Fingerprint),
			Date:        req.Date,
		},
	}

	if exists, nonEmpty, err := dirExistsNonEmpty(packagePath); err != nil {
		return result, err
	} else if exists && nonEmpty {
		// Idempotency on retry of a prior run (spec.md §4.7): verify every
		// file's on-disk MD5 before deciding whether to re-download.
		ok, err := verifyExistingPackage(dataDir, req.Files)
		if err != nil {
			return result, err
		}
		if ok {
			if err := writeMetadata(metadataDir, req); err != nil {
				return result, err
			}
			return result, nil
		}
		if err := os.RemoveAll(packagePath); err != nil {
			return result, fmt.Errorf("pkgbuilder: failed to roll back stale package %q: %w", packagePath, err)
		}
	}

	for _, dir := range []string{dataDir, metadataDir, ualRDMDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result, fmt.Errorf("pkgbuilder: failed to create %q: %w", dir, err)
		}
	}

	if err := b.downloadAll(ctx, dataDir, req); err != nil {
		_ = os.RemoveAll(packagePath)
		return result, err
	}

	if req.CurationRoot != "" {
		curationSrc := filepath.Join(req.CurationRoot, req.CurationMatch.AuthorDir, req.CurationMatch.VersionDir, "UAL_RDM")
		if err := copyTree(curationSrc, ualRDMDir); err != nil {
			_ = os.RemoveAll(packagePath)
			return result, fmt.Errorf("pkgbuilder: failed to copy curation UAL_RDM tree: %w", err)
		}
	}

	if err := writeMetadata(metadataDir, req); err != nil {
		_ = os.RemoveAll(packagePath)
		return result, err
	}

	return result, nil
}

func dirExistsNonEmpty(path string) (exists, nonEmpty bool, err error) {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, len(entries) > 0, nil
}

func verifyExistingPackage(dataDir string, files []model.FileRef) (bool, error) {
	for _, f := range files {
		if f.IsLinkOnly {
			continue
		}
		path := filepath.Join(dataDir, dataFileName(f))
		sum, err := rebachutil.Md5sum(path)
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
		if sum != f.ExpectedMD5() {
			return false, nil
		}
	}
	return true, nil
}

func dataFileName(f model.FileRef) string {
	return fmt.Sprintf("%d_%s", f.ID, f.Name)
}

// downloadAll streams every non-link file to dataDir in catalog order
// (spec.md §5 ordering guarantee), verifying MD5 as it goes.
func (b *Builder) downloadAll(ctx context.Context, dataDir string, req Request) error {
	for _, f := range req.Files {
		if f.IsLinkOnly {
			continue
		}
		if err := b.downloadOne(ctx, dataDir, f, req); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) downloadOne(ctx context.Context, dataDir string, f model.FileRef, req Request) error {
	destPath := filepath.Join(dataDir, dataFileName(f))

	err := retry.Do(func() (retry.Classification, error) {
		req2, err := http.NewRequestWithContext(ctx, http.MethodGet, f.DownloadURL, nil)
		if err != nil {
			return retry.Fatal, err
		}
		if req.Token != "" {
			req2.Header.Set("Authorization", "token "+req.Token)
		}

		resp, err := b.httpClient.Do(req2)
		if err != nil {
			return retry.ClassifyHTTPStatus(0, err), err
		}
		defer resp.Body.Close()

		class := retry.ClassifyHTTPStatus(resp.StatusCode, nil)
		if class != retry.Ok {
			return class, fmt.Errorf("download of %q returned status %d", f.DownloadURL, resp.StatusCode)
		}

		out, err := os.Create(destPath)
		if err != nil {
			return retry.Fatal, err
		}
		defer out.Close()

		h := md5.New()
		buf := make([]byte, downloadChunkSize)
		if _, err := io.CopyBuffer(io.MultiWriter(out, h), resp.Body, buf); err != nil {
			return retry.Transient, err
		}

		sum := hex.EncodeToString(h.Sum(nil))
		if expected := f.ExpectedMD5(); expected != "" && sum != expected {
			return retry.Fatal, fmt.Errorf("md5 mismatch for %q: got %s, want %s", f.Name, sum, expected)
		}
		return retry.Ok, nil
	}, maxInt(req.Retries, 1), req.RetriesWait)

	return err
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		_, err = rebachutil.CopyFile(path, target)
		return err
	})
}

func writeMetadata(metadataDir string, req Request) error {
	cleaned := make(map[string]interface{}, len(req.MetadataJSON))
	for k, v := range req.MetadataJSON {
		cleaned[k] = v
	}
	for _, field := range helperFields {
		delete(cleaned, field)
	}

	data, err := json.MarshalIndent(cleaned, "", "  ")
	if err != nil {
		return fmt.Errorf("pkgbuilder: failed to marshal METADATA JSON: %w", err)
	}

	path := filepath.Join(metadataDir, fmt.Sprintf("%d.json", req.ArticleID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("pkgbuilder: failed to write %q: %w", path, err)
	}
	return nil
}
