// Package bagconfig loads the bagger/workflow TOML configuration
// (spec.md §6, SPEC_FULL.md §2.1): [Defaults], [Wasabi], [Logging], and
// [Metadata]. Parsing uses github.com/BurntSushi/toml, grounded on
// storj-storj's go.mod, matching the original bagger's own TOML-based
// config (original_source/bagger/config/__init__.py) translated from
// Python's tomllib to Go.
package bagconfig

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Defaults mirrors the TOML [Defaults] table.
type Defaults struct {
	Workflow               string `toml:"workflow"`
	ArchivalStagingStorage string `toml:"archival_staging_storage"`
	DartCommand            string `toml:"dart_command"`
	Delete                 bool   `toml:"delete"`
	Overwrite              bool   `toml:"overwrite"`
}

// Wasabi mirrors the TOML [Wasabi] table: the staging remote's
// S3-compatible credentials and bucket.
type Wasabi struct {
	AccessKey                  string `toml:"access_key"`
	SecretKey                  string `toml:"secret_key"`
	Host                       string `toml:"host"`
	Bucket                     string `toml:"bucket"`
	HostBucket                 string `toml:"host_bucket"`
	DartWorkflowHostbucketOverride bool `toml:"dart_workflow_hostbucket_override"`
}

// Logging mirrors the TOML [Logging] table.
type Logging struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

// MetadataTag is one entry of the [Metadata] tag_file -> tag_name mapping:
// either a direct dotted tag_source string, or a structured descriptor with
// strip_html/shorten options (spec.md §6's tag-path descent rules).
type MetadataTag struct {
	TagSource string `toml:"tag_source"`
	StripHTML bool   `toml:"strip_html"`
	Shorten   int    `toml:"shorten"`
}

// Config is the fully parsed bagger/workflow TOML configuration. Metadata
// entries are decoded as raw interface{} because TOML itself doesn't
// distinguish "string" from "table" at the schema level — NormalizeTag
// below resolves either shape into a MetadataTag, mirroring the original
// bagger/metadata.py's own runtime type check on tag_source.
type Config struct {
	Defaults Defaults                         `toml:"Defaults"`
	Wasabi   Wasabi                            `toml:"Wasabi"`
	Logging  Logging                           `toml:"Logging"`
	Metadata map[string]map[string]interface{} `toml:"Metadata"`
}

// Load parses the TOML file at path.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("bagconfig: failed to read %q: %w", path, err)
	}
	return cfg, nil
}

// NormalizeTag resolves a raw [Metadata] entry into a MetadataTag,
// accepting either a bare dotted string or a {tag_source, strip_html,
// shorten} table (original_source/bagger/metadata.py's runtime check on
// tag_source's type).
func NormalizeTag(raw interface{}) (MetadataTag, error) {
	switch v := raw.(type) {
	case string:
		return MetadataTag{TagSource: v}, nil
	case map[string]interface{}:
		tag := MetadataTag{}
		if s, ok := v["tag_source"].(string); ok {
			tag.TagSource = s
		}
		if b, ok := v["strip_html"].(bool); ok {
			tag.StripHTML = b
		}
		if n, ok := v["shorten"].(int64); ok {
			tag.Shorten = int(n)
		}
		return tag, nil
	default:
		return MetadataTag{}, fmt.Errorf("bagconfig: unsupported [Metadata] entry type %T", raw)
	}
}
