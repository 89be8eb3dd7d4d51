package bagconfig

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/UAL-RE/ReBACH/internal/tagpath"
)

// ProjectedTag is one resolved bag-info tag: a tag-file/tag-name pair and
// the string value descended out of the article/collection metadata JSON.
type ProjectedTag struct {
	TagFile string
	TagName string
	Value   string
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// ProjectTags walks every [Metadata] entry in cfg, descending data along
// each entry's tag_source path and applying strip_html/shorten, mirroring
// original_source/bagger/metadata.py's Metadata.parse_metadata. Entries are
// visited in tag_file, then tag_name, order for deterministic output. Unlike
// the original, tag_file keys here already carry their ".txt" extension
// (matching this package's own TOML fixture convention, e.g.
// `[Metadata."bag-info.txt"]`), so no suffix is appended.
func ProjectTags(cfg Config, data map[string]interface{}) ([]ProjectedTag, error) {
	tagFiles := make([]string, 0, len(cfg.Metadata))
	for tagFile := range cfg.Metadata {
		tagFiles = append(tagFiles, tagFile)
	}
	sort.Strings(tagFiles)

	var tags []ProjectedTag
	for _, tagFile := range tagFiles {
		entries := cfg.Metadata[tagFile]
		tagNames := make([]string, 0, len(entries))
		for tagName := range entries {
			tagNames = append(tagNames, tagName)
		}
		sort.Strings(tagNames)

		for _, tagName := range tagNames {
			tag, err := NormalizeTag(entries[tagName])
			if err != nil {
				return nil, fmt.Errorf("bagconfig: %s.%s: %w", tagFile, tagName, err)
			}

			value, err := tagpath.Descend(data, tagpath.ParsePath(tag.TagSource))
			if err != nil {
				return nil, fmt.Errorf("bagconfig: %s.%s: %w", tagFile, tagName, err)
			}

			if tag.StripHTML {
				value = htmlTagPattern.ReplaceAllString(value, "")
			}
			if tag.Shorten > 0 {
				value = shortenText(value, tag.Shorten)
			}

			tags = append(tags, ProjectedTag{
				TagFile: tagFile,
				TagName: tagName,
				Value:   value,
			})
		}
	}

	return tags, nil
}

// shortenText collapses whitespace and truncates to width words at a time,
// appending a placeholder when truncated, mirroring Python's
// textwrap.shorten(text, width, placeholder=" [...]").
func shortenText(s string, width int) string {
	const placeholder = " [...]"

	joined := strings.Join(strings.Fields(s), " ")
	if len(joined) <= width {
		return joined
	}

	avail := width - len(placeholder)
	if avail < 0 {
		avail = 0
	}

	var kept strings.Builder
	for _, word := range strings.Fields(joined) {
		candidate := word
		if kept.Len() > 0 {
			candidate = kept.String() + " " + word
		}
		if len(candidate) > avail {
			break
		}
		kept.Reset()
		kept.WriteString(candidate)
	}

	return kept.String() + placeholder
}
