package orchestrator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/UAL-RE/ReBACH/internal/bagconfig"
	"github.com/UAL-RE/ReBACH/internal/bagger"
	"github.com/UAL-RE/ReBACH/internal/config"
	"github.com/UAL-RE/ReBACH/internal/figshare"
	"github.com/UAL-RE/ReBACH/internal/fingerprint"
	"github.com/UAL-RE/ReBACH/internal/model"
	"github.com/UAL-RE/ReBACH/internal/pkgbuilder"
	"github.com/UAL-RE/ReBACH/internal/rebachlog"
	"github.com/UAL-RE/ReBACH/internal/store"
)

type fakeCatalog struct {
	versions           []figshare.VersionRef
	fetchResults       map[int]figshare.FetchResult
	fetchErr           map[int]error
	collectionArticles []int
}

func (f *fakeCatalog) GetArticles(ctx context.Context) ([]figshare.ArticleSummary, error) { return nil, nil }
func (f *fakeCatalog) GetCollections(ctx context.Context) ([]figshare.CollectionSummary, error) {
	return nil, nil
}
func (f *fakeCatalog) GetCollectionArticles(ctx context.Context, collectionID int) ([]int, error) {
	if f.collectionArticles != nil {
		return f.collectionArticles, nil
	}
	return []int{1, 2}, nil
}
func (f *fakeCatalog) GetArticleVersions(ctx context.Context, publicURL string) ([]figshare.VersionRef, error) {
	return f.versions, nil
}
func (f *fakeCatalog) GetVersionMetadata(ctx context.Context, version int, versionURL string) (figshare.FetchResult, error) {
	if err, ok := f.fetchErr[version]; ok {
		return figshare.FetchResult{}, err
	}
	return f.fetchResults[version], nil
}

func newLogger(t *testing.T) *rebachlog.Logger {
	t.Helper()
	l, err := rebachlog.New(t.TempDir(), false, time.Now())
	if err != nil {
		t.Fatalf("rebachlog.New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func fetchResultFor(articleID int) figshare.FetchResult {
	raw := map[string]interface{}{
		"id":          float64(articleID),
		"description": "a description",
	}
	return figshare.FetchResult{
		Version: figshare.ItemVersionJSON{Raw: raw},
	}
}

func TestRunArticleUnmatchedVersionSkippedMatchedVersionPackaged(t *testing.T) {
	content := []byte("file contents")
	sum := md5.Sum(content)
	hexSum := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	curationRoot := t.TempDir()
	v2Dir := filepath.Join(curationRoot, "1234567_Smith", "v02", "UAL_RDM")
	if err := os.MkdirAll(v2Dir, 0o755); err != nil {
		t.Fatalf("mkdir curation: %v", err)
	}
	for _, name := range []string{"deposit agreement.pdf", "redata-depositreview.docx", "foo_trello.pdf"} {
		if err := os.WriteFile(filepath.Join(v2Dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write curation artifact: %v", err)
		}
	}

	catalog := &fakeCatalog{
		versions: []figshare.VersionRef{{Version: 1, URL: "v1"}, {Version: 2, URL: "v2"}},
		fetchResults: map[int]figshare.FetchResult{
			1: fetchResultFor(1234567),
			2: {
				Version: figshare.ItemVersionJSON{
					Raw: map[string]interface{}{"id": float64(1234567)},
				},
			},
		},
	}

	preservationRoot := t.TempDir()
	idx := store.NewIndex(nil) // no probes: nothing is ever already-preserved

	o := &Orchestrator{
		Catalog:          catalog,
		Index:            idx,
		Builder:          pkgbuilder.New(nil),
		Log:              newLogger(t),
		System:           config.System{BagNamePrefix: "azu", AdditionalPercentRequired: 10},
		CurationRoot:     curationRoot,
		PreservationRoot: preservationRoot,
		Now:              func() time.Time { return time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC) },
	}

	// Patch version 2's files to point at our test server with a matching hash.
	v2 := catalog.fetchResults[2]
	v2.Version.Files = []model.FileRef{{ID: 1, Name: "data.bin", DownloadURL: srv.URL, SuppliedMD5: hexSum}}
	catalog.fetchResults[2] = v2

	summary, err := o.RunArticle(context.Background(), 1234567, "https://example.test/articles/1234567")
	if err != nil {
		t.Fatalf("RunArticle() returned unexpected error: %v", err)
	}
	if summary.Matched != 1 {
		t.Fatalf("Matched = %d, want 1", summary.Matched)
	}
	if summary.Processed != 1 {
		t.Fatalf("Processed = %d, want 1", summary.Processed)
	}
	if summary.Unmatched != 1 {
		t.Fatalf("Unmatched = %d, want 1 (v1 has no curation match)", summary.Unmatched)
	}
}

type stubProbe struct {
	origin  model.Origin
	entries []model.PreservedEntry
}

func (p stubProbe) Origin() model.Origin { return p.origin }
func (p stubProbe) Find(ctx context.Context, articleID, version int) ([]model.PreservedEntry, error) {
	return p.entries, nil
}

func TestRunArticleSkipsWhenAlreadyInStaging(t *testing.T) {
	curationRoot := t.TempDir()
	catalog := &fakeCatalog{
		versions: []figshare.VersionRef{{Version: 2, URL: "v2"}},
		fetchResults: map[int]figshare.FetchResult{
			2: {Version: figshare.ItemVersionJSON{Raw: map[string]interface{}{"id": float64(1234567)}}},
		},
	}

	// normalize() reduces absent description/funding_list/related_materials
	// to empty strings, so an all-absent record's Fingerprint is always
	// md5("") — seed the staging probe with that well-known constant.
	const emptyFieldsFingerprint = "d41d8cd98f00b204e9800998ecf8427e"

	idx := store.NewIndex(nil, stubProbe{origin: model.OriginStagingRemote, entries: []model.PreservedEntry{
		{Fingerprint: model.Fingerprint(emptyFieldsFingerprint), Size: 0, Origin: model.OriginStagingRemote},
	}})

	o := &Orchestrator{
		Catalog:          catalog,
		Index:            idx,
		Builder:          pkgbuilder.New(nil),
		Log:              newLogger(t),
		System:           config.System{BagNamePrefix: "azu"},
		CurationRoot:     curationRoot,
		PreservationRoot: t.TempDir(),
	}

	summary, err := o.RunArticle(context.Background(), 1234567, "v2")
	if err != nil {
		t.Fatalf("RunArticle() returned unexpected error: %v", err)
	}
	if summary.AlreadyPreservedStaging != 1 {
		t.Fatalf("AlreadyPreservedStaging = %d, want 1", summary.AlreadyPreservedStaging)
	}
	if summary.Matched != 0 {
		t.Fatalf("Matched = %d, want 0 (already-preserved version is skipped before curation matching)", summary.Matched)
	}
}

func TestRunArticleContinuesOnErrorWhenConfigured(t *testing.T) {
	catalog := &fakeCatalog{
		versions: []figshare.VersionRef{{Version: 1, URL: "v1"}},
		fetchErr: map[int]error{1: errors.New("boom")},
	}

	o := &Orchestrator{
		Catalog:          catalog,
		Index:            store.NewIndex(nil),
		Builder:          pkgbuilder.New(nil),
		Log:              newLogger(t),
		System:           config.System{BagNamePrefix: "azu"},
		CurationRoot:     t.TempDir(),
		PreservationRoot: t.TempDir(),
		ContinueOnError:  true,
	}

	summary, err := o.RunArticle(context.Background(), 1, "v1")
	if err != nil {
		t.Fatalf("RunArticle() returned error despite ContinueOnError: %v", err)
	}
	if summary.Errors != 1 {
		t.Fatalf("Errors = %d, want 1", summary.Errors)
	}
}

func newMatchedArticleOrchestrator(t *testing.T, continueOnError bool) (*Orchestrator, *fakeCatalog) {
	t.Helper()

	content := []byte("file contents")
	sum := md5.Sum(content)
	hexSum := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}))
	t.Cleanup(srv.Close)

	curationRoot := t.TempDir()
	v1Dir := filepath.Join(curationRoot, "1234567_Smith", "v01", "UAL_RDM")
	if err := os.MkdirAll(v1Dir, 0o755); err != nil {
		t.Fatalf("mkdir curation: %v", err)
	}
	for _, name := range []string{"deposit agreement.pdf", "redata-depositreview.docx", "foo_trello.pdf"} {
		if err := os.WriteFile(filepath.Join(v1Dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write curation artifact: %v", err)
		}
	}

	fetched := figshare.FetchResult{
		Version: figshare.ItemVersionJSON{Raw: map[string]interface{}{"id": float64(1234567)}},
	}
	fetched.Version.Files = []model.FileRef{{ID: 1, Name: "data.bin", DownloadURL: srv.URL, SuppliedMD5: hexSum}}

	catalog := &fakeCatalog{
		versions:     []figshare.VersionRef{{Version: 1, URL: "v1"}},
		fetchResults: map[int]figshare.FetchResult{1: fetched},
	}

	o := &Orchestrator{
		Catalog: catalog,
		Index:   store.NewIndex(nil),
		Builder: pkgbuilder.New(nil),
		Log:     newLogger(t),
		// An absurd slack factor makes the required bytes exceed any real
		// filesystem's free space, reliably tripping the !ok branch of
		// space.Preflight without needing to mock the filesystem.
		System:           config.System{BagNamePrefix: "azu", AdditionalPercentRequired: 1e20},
		CurationRoot:     curationRoot,
		PreservationRoot: t.TempDir(),
		ContinueOnError:  continueOnError,
		Now:              func() time.Time { return time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC) },
	}
	return o, catalog
}

func TestRunArticleSpacePreflightFailureAbortsWithoutContinueOnError(t *testing.T) {
	o, _ := newMatchedArticleOrchestrator(t, false)

	summary, err := o.RunArticle(context.Background(), 1234567, "https://example.test/articles/1234567")
	if err == nil {
		t.Fatalf("RunArticle() succeeded, want space preflight failure to abort without ContinueOnError")
	}
	if summary.Errors != 1 {
		t.Fatalf("Errors = %d, want 1", summary.Errors)
	}
	if summary.Processed != 0 {
		t.Fatalf("Processed = %d, want 0: packaging must not run after a space preflight failure", summary.Processed)
	}
}

func TestRunArticleSpacePreflightFailureContinuesWhenConfigured(t *testing.T) {
	o, _ := newMatchedArticleOrchestrator(t, true)

	summary, err := o.RunArticle(context.Background(), 1234567, "https://example.test/articles/1234567")
	if err != nil {
		t.Fatalf("RunArticle() returned error despite ContinueOnError: %v", err)
	}
	if summary.Errors != 1 {
		t.Fatalf("Errors = %d, want 1", summary.Errors)
	}
	if summary.Processed != 0 {
		t.Fatalf("Processed = %d, want 0: packaging must not run after a space preflight failure", summary.Processed)
	}
}

func TestRunArticleAbortsWithoutContinueOnError(t *testing.T) {
	catalog := &fakeCatalog{
		versions: []figshare.VersionRef{{Version: 1, URL: "v1"}},
		fetchErr: map[int]error{1: errors.New("boom")},
	}

	o := &Orchestrator{
		Catalog:          catalog,
		Index:            store.NewIndex(nil),
		Builder:          pkgbuilder.New(nil),
		Log:              newLogger(t),
		System:           config.System{BagNamePrefix: "azu"},
		CurationRoot:     t.TempDir(),
		PreservationRoot: t.TempDir(),
		ContinueOnError:  false,
	}

	_, err := o.RunArticle(context.Background(), 1, "v1")
	if err == nil {
		t.Fatalf("RunArticle() succeeded, want propagated error without ContinueOnError")
	}
}

func TestRunCollectionInjectsCC0LicenseWhenAbsent(t *testing.T) {
	catalog := &fakeCatalog{}
	record := figshare.FetchResult{
		Version: figshare.ItemVersionJSON{Raw: map[string]interface{}{"id": float64(99)}},
	}

	o := &Orchestrator{
		Catalog:          catalog,
		Index:            store.NewIndex(nil),
		Builder:          pkgbuilder.New(nil),
		Log:              newLogger(t),
		System:           config.System{BagNamePrefix: "azu"},
		PreservationRoot: t.TempDir(),
		Now:              func() time.Time { return time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC) },
	}

	_, err := o.RunCollection(context.Background(), 99, 1, record)
	if err != nil {
		t.Fatalf("RunCollection() returned unexpected error: %v", err)
	}
	if _, ok := record.Version.Raw["license"]; !ok {
		t.Fatalf("expected RunCollection to inject a license entry into the raw metadata map")
	}
}

func TestRunCollectionFingerprintSensitiveToArticleMembership(t *testing.T) {
	newRecord := func() figshare.FetchResult {
		return figshare.FetchResult{
			Version: figshare.ItemVersionJSON{Raw: map[string]interface{}{
				"id":      float64(99),
				"license": map[string]interface{}{"name": "CC-BY"},
			}},
		}
	}

	// Fingerprint computed as RunCollection does: raw metadata plus the
	// collection's current article membership (spec.md §4.9 step 2).
	fpFor := func(articles []int) model.Fingerprint {
		ids := make([]interface{}, len(articles))
		for i, a := range articles {
			ids[i] = float64(a)
		}
		record := map[string]interface{}{
			"id":       float64(99),
			"license":  map[string]interface{}{"name": "CC-BY"},
			"articles": ids,
		}
		return model.Fingerprint(fingerprint.ComputeFull(record))
	}

	twoArticles := []int{1, 2}
	threeArticles := []int{1, 2, 3}

	// Seed a local probe with the two-article fingerprint: a run against a
	// catalog reporting three articles must NOT be treated as preserved.
	idx := store.NewIndex(nil, stubProbe{origin: model.OriginLocal, entries: []model.PreservedEntry{
		{Fingerprint: fpFor(twoArticles), Size: 0, Origin: model.OriginLocal},
	}})

	catalog := &fakeCatalog{collectionArticles: threeArticles}
	o := &Orchestrator{
		Catalog:          catalog,
		Index:            idx,
		Builder:          pkgbuilder.New(nil),
		Log:              newLogger(t),
		System:           config.System{BagNamePrefix: "azu"},
		PreservationRoot: t.TempDir(),
		Now:              func() time.Time { return time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC) },
	}

	summary, err := o.RunCollection(context.Background(), 99, 1, newRecord())
	if err != nil {
		t.Fatalf("RunCollection() returned unexpected error: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("Processed = %d, want 1: a 3-article collection must not match a 2-article fingerprint", summary.Processed)
	}
}

func TestBuildAndBagTreatsDuplicateBagAsInformational(t *testing.T) {
	catalog := &fakeCatalog{}
	o := &Orchestrator{
		Catalog:          catalog,
		Index:            store.NewIndex(nil),
		Builder:          pkgbuilder.New(nil),
		Log:              newLogger(t),
		System:           config.System{BagNamePrefix: "azu"},
		PreservationRoot: t.TempDir(),
		CurationRoot:     t.TempDir(),
		Driver: fakeDriver{result: bagger.Result{Status: bagger.StatusDuplicateBag}, err: errors.New("duplicate")},
		Now:    func() time.Time { return time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC) },
	}

	fetched := figshare.FetchResult{Version: figshare.ItemVersionJSON{Raw: map[string]interface{}{"id": float64(1)}}}
	err := o.buildAndBag(context.Background(), 1, 1, "0123456789abcdef0123456789abcdef", model.CurationMatch{}, fetched)
	if err != nil {
		t.Fatalf("buildAndBag() returned error for a duplicate-bag outcome, want nil: %v", err)
	}
}

type fakeDriver struct {
	result bagger.Result
	err    error
}

func (f fakeDriver) Run(ctx context.Context, job bagger.Job) (bagger.Result, error) {
	return f.result, f.err
}

type capturingDriver struct {
	job *bagger.Job
}

func (d *capturingDriver) Run(ctx context.Context, job bagger.Job) (bagger.Result, error) {
	d.job = &job
	return bagger.Result{Status: bagger.StatusSuccess}, nil
}

func TestBuildAndBagProjectsMetadataTagsWhenConfigured(t *testing.T) {
	catalog := &fakeCatalog{}
	driver := &capturingDriver{}
	o := &Orchestrator{
		Catalog:          catalog,
		Index:            store.NewIndex(nil),
		Builder:          pkgbuilder.New(nil),
		Log:              newLogger(t),
		System:           config.System{BagNamePrefix: "azu"},
		PreservationRoot: t.TempDir(),
		CurationRoot:     t.TempDir(),
		Driver:           driver,
		MetadataConfig: &bagconfig.Config{
			Metadata: map[string]map[string]interface{}{
				"bag-info.txt": {"Source-Organization": "description"},
			},
		},
		Now: func() time.Time { return time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC) },
	}

	fetched := figshare.FetchResult{Version: figshare.ItemVersionJSON{Raw: map[string]interface{}{
		"id":          float64(1),
		"description": "a real description",
	}}}

	if err := o.buildAndBag(context.Background(), 1, 1, "0123456789abcdef0123456789abcdef", model.CurationMatch{}, fetched); err != nil {
		t.Fatalf("buildAndBag() returned unexpected error: %v", err)
	}
	if driver.job == nil {
		t.Fatalf("expected the driver to be invoked")
	}
	if len(driver.job.Tags) != 1 || driver.job.Tags[0].Value != "a real description" {
		t.Fatalf("Tags = %+v, want a single projected Source-Organization tag", driver.job.Tags)
	}
}
