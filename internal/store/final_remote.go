package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/UAL-RE/ReBACH/internal/bagname"
	"github.com/UAL-RE/ReBACH/internal/config"
	"github.com/UAL-RE/ReBACH/internal/model"
	"github.com/UAL-RE/ReBACH/internal/retry"
)

// FinalRemoteProbe queries the final preservation store's paginated
// "preserved packages" listing, filtered by alt_identifier prefix. Ported
// from original_source/figshare/Utils.py's
// get_preserved_version_hash_and_size: it matches rows whose bag_name
// contains both the article id and vNN as substrings, and extracts the
// fingerprint via the "[a-f0-9]{32}_bag" pattern (spec.md §4.4).
type FinalRemoteProbe struct {
	cfg        config.Aptrust
	httpClient *http.Client
}

// NewFinalRemoteProbe builds a FinalRemoteProbe from the [aptrust] config
// section.
func NewFinalRemoteProbe(cfg config.Aptrust, httpClient *http.Client) *FinalRemoteProbe {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &FinalRemoteProbe{cfg: cfg, httpClient: httpClient}
}

func (p *FinalRemoteProbe) Origin() model.Origin { return model.OriginFinalRemote }

type finalRemotePackage struct {
	BagName string `json:"bag_name"`
	Size    int64  `json:"size"`
}

type finalRemotePage struct {
	Results []finalRemotePackage `json:"results"`
}

// Find paginates the final store's listing until an empty page, matching
// bag names containing both articleID and the zero-padded version.
func (p *FinalRemoteProbe) Find(ctx context.Context, articleID, version int) ([]model.PreservedEntry, error) {
	var entries []model.PreservedEntry

	for page := 1; ; page++ {
		url := fmt.Sprintf("%s?page=%d&page_size=%d&alt_identifier__starts_with=%s",
			p.cfg.URL, page, p.cfg.ItemsPerPage, p.cfg.AltIdentifierStartsWith)

		var parsed finalRemotePage
		err := retry.Do(func() (retry.Classification, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Fatal, err
			}
			req.Header.Set("X-Pharos-API-User", p.cfg.User)
			req.Header.Set("X-Pharos-API-Key", p.cfg.Token)

			resp, err := p.httpClient.Do(req)
			if err != nil {
				return retry.ClassifyHTTPStatus(0, err), err
			}
			defer resp.Body.Close()

			class := retry.ClassifyHTTPStatus(resp.StatusCode, nil)
			if class != retry.Ok {
				return class, fmt.Errorf("final remote store returned status %d", resp.StatusCode)
			}
			return retry.Ok, json.NewDecoder(resp.Body).Decode(&parsed)
		}, maxInt(p.cfg.Retries, 1), time.Duration(p.cfg.RetriesWait)*time.Second)
		if err != nil {
			return entries, err
		}

		if len(parsed.Results) == 0 {
			return entries, nil
		}

		for _, row := range parsed.Results {
			if !bagname.MatchesArticleVersion(row.BagName, articleID, version) {
				continue
			}
			fp, ok := bagname.ExtractFingerprint(row.BagName)
			if !ok {
				continue
			}
			entries = append(entries, model.PreservedEntry{
				Fingerprint: model.Fingerprint(fp),
				Size:        row.Size,
				Origin:      model.OriginFinalRemote,
			})
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
