// Package orchestrator implements the Article & Collection Orchestrators
// and the Summary Reporter (spec.md §4.9, §5): single-threaded cooperative
// scheduling that wires the Catalog Client, Fingerprint, Preservation
// Index, Curation Matcher, Space Preflight, Package Builder, and Bagger
// Driver into the end-to-end run described in spec.md §2. Sequencing style
// (fetch, decide, act, log, continue-on-error) is grounded on
// cmd/caryatid/actionhandlers.go's top-level action handlers, which drive
// the teacher's own backend/manager pipeline the same single-pass way.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/UAL-RE/ReBACH/internal/bagconfig"
	"github.com/UAL-RE/ReBACH/internal/bagger"
	"github.com/UAL-RE/ReBACH/internal/bagname"
	"github.com/UAL-RE/ReBACH/internal/config"
	"github.com/UAL-RE/ReBACH/internal/curation"
	"github.com/UAL-RE/ReBACH/internal/fingerprint"
	"github.com/UAL-RE/ReBACH/internal/figshare"
	"github.com/UAL-RE/ReBACH/internal/model"
	"github.com/UAL-RE/ReBACH/internal/pkgbuilder"
	"github.com/UAL-RE/ReBACH/internal/rebachlog"
	"github.com/UAL-RE/ReBACH/internal/space"
	"github.com/UAL-RE/ReBACH/internal/store"
)

// Catalog is the subset of figshare.Client the orchestrator needs; an
// interface so tests can stub the catalog without a live server.
type Catalog interface {
	GetArticles(ctx context.Context) ([]figshare.ArticleSummary, error)
	GetCollections(ctx context.Context) ([]figshare.CollectionSummary, error)
	GetCollectionArticles(ctx context.Context, collectionID int) ([]int, error)
	GetArticleVersions(ctx context.Context, publicURL string) ([]figshare.VersionRef, error)
	GetVersionMetadata(ctx context.Context, version int, versionURL string) (figshare.FetchResult, error)
}

// Summary tallies a run's outcome for the Summary Reporter (spec.md §4.9,
// §7's "aggregate counts of warnings and errors").
type Summary struct {
	Matched                int
	Unmatched              int
	Processed              int
	AlreadyPreservedFinal  int
	AlreadyPreservedStaging int
	Errors                 int
	Warnings               int
}

// Orchestrator wires every pipeline component and drives one run.
type Orchestrator struct {
	Catalog         Catalog
	Index           *store.Index
	Builder         *pkgbuilder.Builder
	Driver          bagger.Driver
	MetadataConfig  *bagconfig.Config // [Metadata] tag projection rules; nil disables tag projection
	Log             *rebachlog.Logger
	System          config.System
	CurationRoot    string
	PreservationRoot string
	ContinueOnError bool
	Now             func() time.Time
}

// projectTags resolves job.Tags from raw metadata JSON per o.MetadataConfig,
// if configured (SPEC_FULL.md §6's [Metadata] tag projection). A missing
// MetadataConfig means no bag-info tags beyond the package itself.
func (o *Orchestrator) projectTags(raw map[string]interface{}) ([]bagger.Tag, error) {
	if o.MetadataConfig == nil {
		return nil, nil
	}
	projected, err := bagconfig.ProjectTags(*o.MetadataConfig, raw)
	if err != nil {
		return nil, err
	}
	tags := make([]bagger.Tag, len(projected))
	for i, p := range projected {
		tags[i] = bagger.Tag{TagFile: p.TagFile, TagName: p.TagName, Value: p.Value}
	}
	return tags, nil
}

// RunArticle executes the full article flow (spec.md §4.9) for one
// article: fetch every version, probe the index, match curation, preflight
// space, then build and bag every matched version. Errors from individual
// versions are folded into the Summary. With ContinueOnError false, a
// failure to list versions, to fetch a version's metadata, to pass the
// space preflight, or to build and bag a package aborts the run by being
// returned; index-check and curation-scan failures are counted and the
// loop moves on to the next version either way.
func (o *Orchestrator) RunArticle(ctx context.Context, articleID int, publicURL string) (Summary, error) {
	var summary Summary

	versions, err := o.Catalog.GetArticleVersions(ctx, publicURL)
	if err != nil {
		o.Log.Errorf("article %d: failed to list versions: %v", articleID, err)
		summary.Errors++
		return summary, o.continueOrAbort(err)
	}

	type candidate struct {
		version int
		fetched figshare.FetchResult
		fp      string
		size    int64
		match   model.CurationMatch
	}
	var matched []candidate

	for _, v := range versions {
		fetched, err := o.Catalog.GetVersionMetadata(ctx, v.Version, v.URL)
		if err != nil {
			o.Log.Errorf("article %d v%d: failed to fetch metadata: %v", articleID, v.Version, err)
			summary.Errors++
			if abortErr := o.continueOrAbort(err); abortErr != nil {
				return summary, abortErr
			}
			continue
		}
		if fetched.Skipped {
			o.Log.Infof("article %d v%d: skipped: %s", articleID, v.Version, fetched.SkipReason)
			summary.Unmatched++
			continue
		}
		if fetched.UsedEmbargo {
			o.Log.Infof("article %d v%d: file embargo detected, used private record", articleID, v.Version)
		}

		im := fetched.Version.ToModel(articleID, v.Version)
		fp := fingerprint.Compute(fingerprint.ReducedFields{
			Description:      im.Description,
			FundingList:      im.FundingList,
			RelatedMaterials: im.RelatedMaterials,
		})

		decision, err := o.Index.Check(ctx, articleID, v.Version, model.Fingerprint(fp), im.Size)
		if err != nil {
			o.Log.Errorf("article %d v%d: preservation index check failed: %v", articleID, v.Version, err)
			summary.Errors++
			continue
		}
		if decision.AlreadyPreserved {
			if decision.InFinalRemote {
				summary.AlreadyPreservedFinal++
			}
			if decision.InStagingRemote {
				summary.AlreadyPreservedStaging++
			}
			o.Log.Infof("article %d v%d: already preserved, skipping", articleID, v.Version)
			continue
		}

		match, ok, err := curation.Match(o.CurationRoot, articleID, v.Version)
		if err != nil {
			o.Log.Errorf("article %d v%d: curation scan failed: %v", articleID, v.Version, err)
			summary.Errors++
			continue
		}
		if !ok {
			o.Log.Infof("article %d v%d: no curation match", articleID, v.Version)
			summary.Unmatched++
			continue
		}
		if !match.Complete() {
			o.Log.Infof("article %d v%d: curation match incomplete: missing required artifacts", articleID, v.Version)
			summary.Unmatched++
			continue
		}

		summary.Matched++
		matched = append(matched, candidate{version: v.Version, fetched: fetched, fp: fp, size: im.Size, match: match})
	}

	if len(matched) == 0 {
		return summary, nil
	}

	var requiredBytes int64
	curationBytes := make(map[int]int64, len(matched))
	for _, c := range matched {
		cb, err := curation.UALRDMBytes(o.CurationRoot, c.match)
		if err != nil {
			o.Log.Errorf("article %d v%d: failed to size curation artifacts: %v", articleID, c.version, err)
			summary.Errors++
			continue
		}
		curationBytes[c.version] = cb
		requiredBytes += c.size + cb
	}

	required := space.Required(o.System.SlackFactor(), requiredBytes, 0)
	ok, free, err := space.Preflight(o.PreservationRoot, required)
	if err != nil {
		o.Log.Errorf("article %d: space preflight failed: %v", articleID, err)
		summary.Errors++
		return summary, o.continueOrAbort(fmt.Errorf("orchestrator: space preflight failed: %w", err))
	}
	if !ok {
		o.Log.Errorf("article %d: space preflight failed: need %d bytes, have %d free", articleID, required, free)
		summary.Errors++
		return summary, o.continueOrAbort(fmt.Errorf("orchestrator: insufficient space: need %d, have %d", required, free))
	}

	for _, c := range matched {
		if err := o.buildAndBag(ctx, articleID, c.version, c.fp, c.match, c.fetched); err != nil {
			o.Log.Errorf("article %d v%d: %v", articleID, c.version, err)
			summary.Errors++
			if abortErr := o.continueOrAbort(err); abortErr != nil {
				return summary, abortErr
			}
			continue
		}
		summary.Processed++
	}

	return summary, nil
}

func (o *Orchestrator) buildAndBag(ctx context.Context, articleID, version int, fp string, match model.CurationMatch, fetched figshare.FetchResult) error {
	im := fetched.Version.ToModel(articleID, version)
	lastName := "Unknown"
	if len(im.Authors) > 0 {
		lastName = im.Authors[0].LastName
	}

	now := time.Now
	if o.Now != nil {
		now = o.Now
	}

	curationRoot := ""
	if match.AuthorDir != "" {
		curationRoot = o.CurationRoot
	}

	req := pkgbuilder.Request{
		Root:          o.PreservationRoot,
		Prefix:        o.System.BagNamePrefix,
		ArticleID:     articleID,
		Version:       version,
		LastName:      lastName,
		Fingerprint:   fp,
		Date:          now(),
		Files:         im.Files,
		MetadataJSON:  fetched.Version.Raw,
		CurationRoot:  curationRoot,
		CurationMatch: match,
		Retries:       3,
		RetriesWait:   5 * time.Second,
	}

	result, err := o.Builder.Build(ctx, req)
	if err != nil {
		return fmt.Errorf("package build failed: %w", err)
	}

	if o.Driver == nil {
		return nil
	}

	tags, err := o.projectTags(fetched.Version.Raw)
	if err != nil {
		return fmt.Errorf("metadata tag projection failed: %w", err)
	}

	name := bagname.Format(o.System.BagNamePrefix, articleID, version, lastName, fp, req.Date)
	job := bagger.Job{
		PackagePath: filepath.Join(result.Path, result.Package.VersionDir()),
		BagName:     name,
		Files:       []string{result.Path},
		Tags:        tags,
	}

	bagResult, err := o.Driver.Run(ctx, job)
	if err != nil {
		if bagResult.Status == bagger.StatusDuplicateBag {
			o.Log.Infof("article %d v%d: bag already exists in staging, treated as duplicate not error", articleID, version)
			return nil
		}
		return fmt.Errorf("post-processor failed: %w", err)
	}
	return nil
}

// continueOrAbort implements spec.md §7's propagation policy for the
// per-version failures routed through it, space failures included: with
// ContinueOnError set the error is dropped (the caller has already logged
// and counted it) and the run proceeds; otherwise the error is returned so
// the run aborts.
func (o *Orchestrator) continueOrAbort(err error) error {
	if o.ContinueOnError {
		return nil
	}
	return err
}

// injectedCC0License is the synthetic license object the Collection flow
// writes when a collection's payload omits one (spec.md §4.9 step 3).
var injectedCC0License = map[string]interface{}{
	"name": "CC0",
	"url":  "https://creativecommons.org/publicdomain/zero/1.0/",
}

// RunCollection executes the collection flow (spec.md §4.9): paginate
// articles, fingerprint the full collection record (articles included),
// probe all three stores, inject a synthetic CC0 license when absent, and
// write METADATA JSON / invoke the post-processor.
func (o *Orchestrator) RunCollection(ctx context.Context, collectionID, version int, record figshare.FetchResult) (Summary, error) {
	var summary Summary

	articles, err := o.Catalog.GetCollectionArticles(ctx, collectionID)
	if err != nil {
		summary.Errors++
		return summary, fmt.Errorf("orchestrator: failed to list collection %d articles: %w", collectionID, err)
	}

	im := record.Version.ToModel(collectionID, version)
	coll := model.Collection{ItemVersion: im, Articles: articles}

	raw := record.Version.Raw
	if raw == nil {
		raw = map[string]interface{}{}
	}
	if _, hasLicense := raw["license"]; !hasLicense {
		raw["license"] = injectedCC0License
		coll.License = injectedCC0License
	}

	fpRecord := make(map[string]interface{}, len(raw)+1)
	for k, v := range raw {
		fpRecord[k] = v
	}
	articleIDs := make([]interface{}, len(articles))
	for i, a := range articles {
		articleIDs[i] = float64(a)
	}
	fpRecord["articles"] = articleIDs
	fp := fingerprint.ComputeFull(fpRecord)

	decision, err := o.Index.Check(ctx, collectionID, version, model.Fingerprint(fp), coll.Size)
	if err != nil {
		summary.Errors++
		return summary, fmt.Errorf("orchestrator: preservation index check failed for collection %d: %w", collectionID, err)
	}
	if decision.AlreadyPreserved {
		o.Log.Infof("collection %d v%d: already preserved, skipping", collectionID, version)
		if decision.InFinalRemote {
			summary.AlreadyPreservedFinal++
		}
		if decision.InStagingRemote {
			summary.AlreadyPreservedStaging++
		}
		return summary, nil
	}

	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	lastName := "Unknown"
	if len(coll.Authors) > 0 {
		lastName = coll.Authors[0].LastName
	}

	req := pkgbuilder.Request{
		Root:         o.PreservationRoot,
		Prefix:       o.System.BagNamePrefix,
		ArticleID:    collectionID,
		Version:      version,
		LastName:     lastName,
		Fingerprint:  fp,
		Date:         now(),
		MetadataJSON: raw,
		Retries:      3,
		RetriesWait:  5 * time.Second,
	}

	result, err := o.Builder.Build(ctx, req)
	if err != nil {
		summary.Errors++
		return summary, fmt.Errorf("orchestrator: collection %d package build failed: %w", collectionID, err)
	}

	if o.Driver != nil {
		tags, tagErr := o.projectTags(raw)
		if tagErr != nil {
			o.Log.Errorf("collection %d v%d: metadata tag projection failed: %v", collectionID, version, tagErr)
			summary.Errors++
			return summary, nil
		}
		name := bagname.Format(o.System.BagNamePrefix, collectionID, version, lastName, fp, req.Date)
		if bagResult, err := o.Driver.Run(ctx, bagger.Job{BagName: name, Files: []string{result.Path}, Tags: tags}); err != nil {
			if bagResult.Status == bagger.StatusDuplicateBag {
				o.Log.Infof("collection %d v%d: bag already exists in staging, treated as duplicate not error", collectionID, version)
			} else {
				o.Log.Errorf("collection %d v%d: post-processor failed: %v", collectionID, version, err)
				summary.Errors++
			}
		}
	}

	summary.Processed++
	return summary, nil
}
