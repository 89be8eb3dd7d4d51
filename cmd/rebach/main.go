/*
rebach is the one-shot preservation pipeline CLI.

	rebach --xfg /etc/rebach/config.ini [--ids 1234567,7654321] [--continue-on-error]
	rebach --version
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/UAL-RE/ReBACH/internal/bagconfig"
	"github.com/UAL-RE/ReBACH/internal/bagger"
	"github.com/UAL-RE/ReBACH/internal/buildinfo"
	"github.com/UAL-RE/ReBACH/internal/config"
	"github.com/UAL-RE/ReBACH/internal/figshare"
	"github.com/UAL-RE/ReBACH/internal/orchestrator"
	"github.com/UAL-RE/ReBACH/internal/pkgbuilder"
	"github.com/UAL-RE/ReBACH/internal/rebachlog"
	"github.com/UAL-RE/ReBACH/internal/store"
)

func parseIDs(csv string) ([]int, error) {
	if csv == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid --ids entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func main() {
	xfgFlag := flag.String("xfg", "", "Path to the INI configuration file")
	idsFlag := flag.String("ids", "", "Comma-separated list of article/collection ids to restrict the run to")
	continueOnErrorFlag := flag.Bool("continue-on-error", false, "Keep processing remaining items after a per-item error")
	versionFlag := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(buildinfo.String())
		return
	}

	if *xfgFlag == "" {
		log.Println("Error: --xfg is required")
		os.Exit(1)
	}

	ids, err := parseIDs(*idsFlag)
	if err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*xfgFlag)
	if err != nil {
		log.Printf("Error loading config: %v", err)
		os.Exit(1)
	}

	continueOnError := cfg.System.ContinueOnError || *continueOnErrorFlag

	logger, err := rebachlog.New(cfg.System.LogsLocation, true, time.Now())
	if err != nil {
		log.Printf("Error initializing logger: %v", err)
		os.Exit(1)
	}
	defer logger.Close()

	httpClient := &http.Client{Timeout: 120 * time.Second}
	catalog := figshare.New(cfg.FigshareAPI, httpClient)

	index := store.NewIndex(
		logger,
		store.NewFinalRemoteProbe(cfg.Aptrust, httpClient),
		store.NewLocalProbe(cfg.System.PreservationStorageLocation),
	)

	var driver bagger.Driver
	var metadataConfig *bagconfig.Config
	if bagCfgPath := os.Getenv("REBACH_BAGGER_CONFIG"); bagCfgPath != "" {
		bagCfg, err := bagconfig.Load(bagCfgPath)
		if err != nil {
			log.Printf("Error loading bagger config: %v", err)
			os.Exit(1)
		}
		metadataConfig = &bagCfg
		index = store.NewIndex(
			logger,
			store.NewFinalRemoteProbe(cfg.Aptrust, httpClient),
			store.NewStagingRemoteProbe(bagCfg.Wasabi),
			store.NewLocalProbe(cfg.System.PreservationStorageLocation),
		)
		if cfg.System.PostProcessScriptCommand == "Bagger" {
			inProcess, err := bagger.NewInProcessDriver(bagCfg.Wasabi, bagCfg.Defaults.Overwrite)
			if err != nil {
				log.Printf("Error initializing in-process bagger driver: %v", err)
				os.Exit(1)
			}
			driver = inProcess
		} else {
			driver = bagger.NewExecDriver(cfg.System.PostProcessScriptCommand, bagCfg.Defaults.Workflow, bagCfg.Defaults.ArchivalStagingStorage, bagCfg.Defaults.Delete)
		}
	}

	orch := &orchestrator.Orchestrator{
		Catalog:          catalog,
		Index:            index,
		Builder:          pkgbuilder.New(httpClient),
		Driver:           driver,
		MetadataConfig:   metadataConfig,
		Log:              logger,
		System:           cfg.System,
		CurationRoot:     cfg.System.CurationStorageLocation,
		PreservationRoot: cfg.System.PreservationStorageLocation,
		ContinueOnError:  continueOnError,
	}

	ctx := context.Background()
	exitCode := run(ctx, orch, catalog, ids, logger)
	os.Exit(exitCode)
}

func wantID(ids []int, id int) bool {
	if len(ids) == 0 {
		return true
	}
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

// run drives the full multi-article run and returns the process exit code
// (spec.md §6: 0 on normal completion, even with per-item errors under
// continue-on-error; 1 when the article or collection listing fails; 2 when
// a per-item failure, space preflight included, aborts the run because
// continue-on-error is unset).
func run(ctx context.Context, orch *orchestrator.Orchestrator, catalog *figshare.Client, ids []int, logger *rebachlog.Logger) int {
	var total orchestrator.Summary
	fatal := false

	articles, err := catalog.GetArticles(ctx)
	if err != nil {
		logger.Errorf("failed to list articles: %v", err)
		return 1
	}

	for _, a := range articles {
		if !wantID(ids, a.ID) {
			continue
		}
		summary, err := orch.RunArticle(ctx, a.ID, a.PublicURL)
		total = mergeSummary(total, summary)
		if err != nil {
			logger.Errorf("article %d: fatal: %v", a.ID, err)
			fatal = true
			break
		}
	}

	if !fatal {
		collections, err := catalog.GetCollections(ctx)
		if err != nil {
			logger.Errorf("failed to list collections: %v", err)
			return 1
		}

		for _, coll := range collections {
			if !wantID(ids, coll.ID) {
				continue
			}
			versions, err := catalog.GetArticleVersions(ctx, coll.PublicURL)
			if err != nil {
				logger.Errorf("collection %d: failed to list versions: %v", coll.ID, err)
				total.Errors++
				if orch.ContinueOnError {
					continue
				}
				fatal = true
				break
			}
			for _, v := range versions {
				record, err := catalog.GetVersionMetadata(ctx, v.Version, v.URL)
				if err != nil {
					logger.Errorf("collection %d v%d: failed to fetch metadata: %v", coll.ID, v.Version, err)
					total.Errors++
					continue
				}
				summary, err := orch.RunCollection(ctx, coll.ID, v.Version, record)
				total = mergeSummary(total, summary)
				if err != nil {
					if orch.ContinueOnError {
						logger.Errorf("collection %d v%d: %v", coll.ID, v.Version, err)
						continue
					}
					logger.Errorf("collection %d: fatal: %v", coll.ID, err)
					fatal = true
					break
				}
			}
			if fatal {
				break
			}
		}
	}

	warnings, errs := logger.Counts()
	logger.Infof(
		"run complete: matched=%d unmatched=%d processed=%d already_preserved_final=%d already_preserved_staging=%d warnings=%d errors=%d",
		total.Matched, total.Unmatched, total.Processed, total.AlreadyPreservedFinal, total.AlreadyPreservedStaging, warnings, errs,
	)

	if fatal {
		return 2
	}
	return 0
}

func mergeSummary(a, b orchestrator.Summary) orchestrator.Summary {
	a.Matched += b.Matched
	a.Unmatched += b.Unmatched
	a.Processed += b.Processed
	a.AlreadyPreservedFinal += b.AlreadyPreservedFinal
	a.AlreadyPreservedStaging += b.AlreadyPreservedStaging
	a.Errors += b.Errors
	a.Warnings += b.Warnings
	return a
}
