// Package store implements the Preservation Index (spec.md §4.4): three
// probes against independent stores, aggregated by an Index the way the
// teacher's BackendManager aggregates its CaryatidBackend implementations
// (pkg/caryatid/backend.go) — one manager, several interchangeable
// backends, each returning results in a common shape.
package store

import (
	"context"
	"fmt"

	"github.com/UAL-RE/ReBACH/internal/model"
	"github.com/UAL-RE/ReBACH/internal/rebachlog"
)

// Probe is one of the Preservation Index's three stores: it returns every
// (fingerprint, size) pair it can find for a given (articleID, version).
type Probe interface {
	Origin() model.Origin
	Find(ctx context.Context, articleID, version int) ([]model.PreservedEntry, error)
}

// Index aggregates probes and applies the skip/flag decision rule of
// spec.md §4.4.
type Index struct {
	probes []Probe
	log    *rebachlog.Logger
}

// NewIndex builds an Index over the given probes. Probes are queried in
// the order given; a nil logger disables warning output.
func NewIndex(log *rebachlog.Logger, probes ...Probe) *Index {
	return &Index{probes: probes, log: log}
}

// Decision is the outcome of probing all three stores for one
// (articleID, version, fingerprint).
type Decision struct {
	AlreadyPreserved bool
	InFinalRemote    bool
	InStagingRemote  bool
	InLocal          bool
	SizeMismatch     bool
}

// Check probes every store and applies spec.md §4.4's decision rule: if the
// current fingerprint equals any probe's fingerprint, the item-version is
// already preserved; presence in both remotes sets InFinalRemote and
// InStagingRemote together; multiple hits for the same (id, vNN) in one
// store logs a warning; a final-remote size disagreement logs a warning
// but does not block the skip.
func (idx *Index) Check(ctx context.Context, articleID, version int, fp model.Fingerprint, computedSize int64) (Decision, error) {
	var d Decision

	for _, p := range idx.probes {
		entries, err := p.Find(ctx, articleID, version)
		if err != nil {
			return d, fmt.Errorf("store: %s probe failed for article %d v%d: %w", p.Origin(), articleID, version, err)
		}

		matches := 0
		for _, e := range entries {
			if e.Fingerprint != fp {
				continue
			}
			matches++
			d.AlreadyPreserved = true
			switch p.Origin() {
			case model.OriginFinalRemote:
				d.InFinalRemote = true
				if e.Size != computedSize {
					d.SizeMismatch = true
					idx.warnf("final remote size mismatch for article %d v%d: remote=%d computed=%d", articleID, version, e.Size, computedSize)
				}
			case model.OriginStagingRemote:
				d.InStagingRemote = true
			case model.OriginLocal:
				d.InLocal = true
			}
		}
		if matches > 1 {
			idx.warnf("multiple %s hits for article %d v%d", p.Origin(), articleID, version)
		}
	}

	return d, nil
}

func (idx *Index) warnf(format string, args ...interface{}) {
	if idx.log != nil {
		idx.log.Warningf(format, args...)
	}
}
