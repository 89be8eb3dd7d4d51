package store

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"github.com/UAL-RE/ReBACH/internal/bagname"
	"github.com/UAL-RE/ReBACH/internal/model"
)

// localNameRegex is adapted from the local-probe naming pattern named in
// spec.md §4.4:
// \w*_\d+-v\d{2}-[A-Z][A-Za-z]+-[a-f0-9]{32}_bag\d*of?\d*_?\d*
// It is anchored at the start, and both letters of "of" are optional so
// that single-part names such as "..._bag_20250304" match.
var localNameRegex = regexp.MustCompile(`^\w*_\d+-v\d{2}-[A-Z][A-Za-z]+-[a-f0-9]{32}_bag\d*o?f?\d*_?\d*`)

// LocalProbe scans the local preservation root for existing package
// directories (spec.md §4.4). Grounded on
// pkg/caryatid/backend_localfile.go's convention that a missing/absent
// entry is simply an empty result, never an error.
type LocalProbe struct {
	root string
}

// NewLocalProbe builds a LocalProbe rooted at the preservation storage
// location.
func NewLocalProbe(root string) *LocalProbe {
	return &LocalProbe{root: root}
}

func (p *LocalProbe) Origin() model.Origin { return model.OriginLocal }

// Find scans root's immediate children for directories matching the
// naming regex and the (articleID, version) predicate; size is the
// directory's total byte count.
func (p *LocalProbe) Find(ctx context.Context, articleID, version int) ([]model.PreservedEntry, error) {
	entries, err := os.ReadDir(p.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var results []model.PreservedEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !localNameRegex.MatchString(name) {
			continue
		}
		if !bagname.MatchesArticleVersion(name, articleID, version) {
			continue
		}
		fp, ok := bagname.ExtractFingerprint(name)
		if !ok {
			continue
		}
		size, err := dirSize(filepath.Join(p.root, name))
		if err != nil {
			return results, err
		}
		results = append(results, model.PreservedEntry{
			Fingerprint: model.Fingerprint(fp),
			Size:        size,
			Origin:      model.OriginLocal,
		})
	}
	return results, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
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
	return total, err
}
