// Package figshare implements the Catalog Client (spec.md §4.2): paginated
// readers for the articles/collections/versions endpoints, and the
// public/private version fetch with embargo fallback. Ported from
// original_source/figshare/Article.py (get_articles,
// __get_article_versions, __get_article_metadata_by_version) into an
// idiomatic Go REST client using net/http and the retry harness.
package figshare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/UAL-RE/ReBACH/internal/config"
	"github.com/UAL-RE/ReBACH/internal/model"
	"github.com/UAL-RE/ReBACH/internal/retry"
)

const pageSize = 100

// Client talks to the figshare-compatible catalog REST API.
type Client struct {
	cfg        config.FigshareAPI
	httpClient *http.Client
}

// New builds a Client from the [figshare_api] configuration section.
func New(cfg config.FigshareAPI, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// ArticleSummary is one row of the institution articles/collections
// listing: enough to drive pagination and per-item version fetches.
type ArticleSummary struct {
	ID        int    `json:"id"`
	PublicURL string `json:"url_public_api"`
}

// CollectionSummary mirrors ArticleSummary for the collections endpoint.
type CollectionSummary struct {
	ID        int    `json:"id"`
	PublicURL string `json:"url_public_api"`
}

func (c *Client) doJSON(ctx context.Context, method, url string, authToken string, out interface{}) (int, error) {
	var statusCode int
	err := retry.Do(func() (retry.Classification, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return retry.Fatal, err
		}
		if authToken != "" {
			req.Header.Set("Authorization", "token "+authToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.ClassifyHTTPStatus(0, err), err
		}
		defer resp.Body.Close()
		statusCode = resp.StatusCode

		class := retry.ClassifyHTTPStatus(resp.StatusCode, nil)
		if class != retry.Ok {
			return class, fmt.Errorf("figshare: %s %s returned status %d", method, url, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.Transient, err
		}
		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return retry.Fatal, fmt.Errorf("figshare: failed to decode response from %s: %w", url, err)
			}
		}
		return retry.Ok, nil
	}, maxInt(c.cfg.Retries, 1), time.Duration(c.cfg.RetriesWait)*time.Second)

	return statusCode, err
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// GetArticles paginates /account/institution/articles until an empty page
// (spec.md §4.2).
func (c *Client) GetArticles(ctx context.Context) ([]ArticleSummary, error) {
	var all []ArticleSummary
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/account/institution/articles?page=%d&page_size=%d&institution=%s",
			c.cfg.URL, page, pageSize, c.cfg.Institution)
		var rows []ArticleSummary
		if _, err := c.doJSON(ctx, http.MethodGet, url, c.cfg.Token, &rows); err != nil {
			return all, err
		}
		if len(rows) == 0 {
			return all, nil
		}
		all = append(all, rows...)
	}
}

// GetCollections paginates /account/institution/collections.
func (c *Client) GetCollections(ctx context.Context) ([]CollectionSummary, error) {
	var all []CollectionSummary
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/account/institution/collections?page=%d&page_size=%d&institution=%s",
			c.cfg.URL, page, pageSize, c.cfg.Institution)
		var rows []CollectionSummary
		if _, err := c.doJSON(ctx, http.MethodGet, url, c.cfg.Token, &rows); err != nil {
			return all, err
		}
		if len(rows) == 0 {
			return all, nil
		}
		all = append(all, rows...)
	}
}

// GetCollectionArticles paginates /collections/{id}/articles.
func (c *Client) GetCollectionArticles(ctx context.Context, collectionID int) ([]int, error) {
	var all []int
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/collections/%d/articles?page=%d&page_size=%d",
			c.cfg.URL, collectionID, page, pageSize)
		var rows []struct {
			ID int `json:"id"`
		}
		if _, err := c.doJSON(ctx, http.MethodGet, url, c.cfg.Token, &rows); err != nil {
			return all, err
		}
		if len(rows) == 0 {
			return all, nil
		}
		for _, r := range rows {
			all = append(all, r.ID)
		}
	}
}

// VersionRef is one entry of an article's /versions listing.
type VersionRef struct {
	Version int    `json:"version"`
	URL     string `json:"url"`
}

// GetArticleVersions fetches <public_url>/versions.
func (c *Client) GetArticleVersions(ctx context.Context, publicURL string) ([]VersionRef, error) {
	var rows []VersionRef
	if _, err := c.doJSON(ctx, http.MethodGet, publicURL+"/versions", "", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// rawVersion is the wire shape of a public or private version payload; only
// the fields the pipeline needs are modeled, matching the reduced-field
// philosophy of spec.md §4.3.
type rawVersion struct {
	ID               int                    `json:"id"`
	Size             int64                  `json:"size"`
	Files            []rawFile              `json:"files"`
	Authors          []rawAuthor            `json:"authors"`
	License          map[string]interface{} `json:"license"`
	HasLinkedFile    bool                   `json:"has_linked_file"`
	IsMetadataRecord bool                   `json:"is_metadata_record"`
	CurationStatus   string                 `json:"curation_status"`
	Description      interface{}            `json:"description"`
	FundingList      interface{}            `json:"funding_list"`
	RelatedMaterials interface{}            `json:"related_materials"`
	URLPrivateAPI    string                 `json:"url_private_api"`
}

type rawFile struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
	IsLinkOnly  bool   `json:"is_link_only"`
	SuppliedMD5 string `json:"supplied_md5"`
	ComputedMD5 string `json:"computed_md5"`
	Size        int64  `json:"size"`
}

type rawAuthor struct {
	FullName string `json:"full_name"`
	LastName string `json:"last_name"`
}

// FetchResult is the outcome of resolving one article version's metadata,
// including whether a private-record embargo fallback was used.
type FetchResult struct {
	Version       ItemVersionJSON
	UsedEmbargo   bool
	EmbargoSource int
	Skipped       bool
	SkipReason    string
}

// ItemVersionJSON is the parsed version payload plus its raw JSON, used
// both to build a model.ItemVersion and to write the cleaned METADATA JSON.
type ItemVersionJSON struct {
	Raw map[string]interface{}
	rawVersion
}

// ToModel builds a model.ItemVersion from the parsed payload.
func (v ItemVersionJSON) ToModel(articleID, version int) model.ItemVersion {
	files := make([]model.FileRef, len(v.Files))
	for i, f := range v.Files {
		files[i] = model.FileRef{
			ID:          f.ID,
			Name:        f.Name,
			DownloadURL: f.DownloadURL,
			IsLinkOnly:  f.IsLinkOnly,
			SuppliedMD5: f.SuppliedMD5,
			ComputedMD5: f.ComputedMD5,
			Size:        f.Size,
		}
	}
	authors := make([]model.Author, len(v.Authors))
	for i, a := range v.Authors {
		authors[i] = model.Author{FullName: a.FullName, LastName: a.LastName}
	}
	return model.ItemVersion{
		ID:               articleID,
		Version:          version,
		Size:             v.Size,
		Files:            files,
		Authors:          authors,
		License:          v.License,
		HasLinkedFile:    v.HasLinkedFile,
		IsMetadataRecord: v.IsMetadataRecord,
		CurationStatus:   v.CurationStatus,
		Description:      v.Description,
		FundingList:      v.FundingList,
		RelatedMaterials: v.RelatedMaterials,
		Raw:              v.Raw,
	}
}

// GetVersionMetadata fetches the public version payload at versionURL and,
// per spec.md §4.2's private fallback semantics, falls back to the private
// record when size>0 but files is empty.
func (c *Client) GetVersionMetadata(ctx context.Context, version int, versionURL string) (FetchResult, error) {
	public, raw, err := c.fetchVersion(ctx, versionURL, "")
	if err != nil {
		return FetchResult{}, err
	}

	if public.Size > 0 && len(public.Files) == 0 {
		if public.URLPrivateAPI == "" {
			return FetchResult{Skipped: true, SkipReason: "file embargo but no private URL available"}, nil
		}
		private, privateRaw, status, err := c.fetchVersionWithStatus(ctx, public.URLPrivateAPI, c.cfg.Token)
		if err != nil {
			if status == http.StatusNotFound {
				return FetchResult{Skipped: true, SkipReason: "private record not found (404)"}, nil
			}
			return FetchResult{}, err
		}
		if private.CurationStatus != "approved" {
			return FetchResult{Skipped: true, SkipReason: "curation_status was not approved"}, nil
		}
		return FetchResult{
			Version:       ItemVersionJSON{Raw: privateRaw, rawVersion: private},
			UsedEmbargo:   true,
			EmbargoSource: version,
		}, nil
	}

	return FetchResult{Version: ItemVersionJSON{Raw: raw, rawVersion: public}}, nil
}

func (c *Client) fetchVersion(ctx context.Context, url, token string) (rawVersion, map[string]interface{}, error) {
	v, raw, _, err := c.fetchVersionWithStatus(ctx, url, token)
	return v, raw, err
}

func (c *Client) fetchVersionWithStatus(ctx context.Context, url, token string) (rawVersion, map[string]interface{}, int, error) {
	var raw map[string]interface{}
	status, err := c.doJSON(ctx, http.MethodGet, url, token, &raw)
	if err != nil {
		return rawVersion{}, nil, status, err
	}

	body, err := json.Marshal(raw)
	if err != nil {
		return rawVersion{}, nil, status, err
	}
	var v rawVersion
	if err := json.Unmarshal(body, &v); err != nil {
		return rawVersion{}, nil, status, err
	}
	return v, raw, status, nil
}
