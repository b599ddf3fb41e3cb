// Package scd implements slowly-changing-dimension (type 2) diffing as an
// append-only log of immutable versions: diffing produces closes and inserts,
// never in-place mutation, so closed history cannot be altered by
// construction.
package scd

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/rent-signals/internal/model"
)

// Candidate is one incoming attribute-version of a dimension entity observed
// this run. PeriodDate orders conflicting candidates for the same key.
type Candidate struct {
	BusinessKey string
	ContentHash string
	Attributes  map[string]any
	PeriodDate  time.Time
}

// Changeset holds the dimension changes one run produces: surrogate keys of
// versions to close, and new current versions to insert. Both are ordered by
// business key so applying a changeset is deterministic.
type Changeset struct {
	CloseKeys []int64
	Inserts   []model.DimensionRow
}

// Empty reports whether the diff found no changes (the idempotent re-run
// case).
func (c Changeset) Empty() bool {
	return len(c.CloseKeys) == 0 && len(c.Inserts) == 0
}

// Diff compares this run's candidates against the current version of each
// business key and produces the changeset that brings the dimension up to
// date:
//
//  1. unseen business key: insert a new open version;
//  2. current version with an identical content hash: no-op;
//  3. differing content hash: close the current version and insert a new one
//     with the same business key.
//
// Multiple candidates for one business key within a run are resolved by
// an explicit keep-latest policy before diffing (see dedupe); EffectiveDate
// of inserts and EndDate of closes are both the injected run time, keeping
// validity intervals gapless.
func Diff(current map[string]model.DimensionRow, candidates []Candidate, processedAt time.Time) Changeset {
	deduped := dedupe(candidates)

	keys := make([]string, 0, len(deduped))
	for k := range deduped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var cs Changeset
	for _, key := range keys {
		cand := deduped[key]
		cur, ok := current[key]
		if ok && cur.ContentHash == cand.ContentHash {
			continue
		}
		if ok {
			cs.CloseKeys = append(cs.CloseKeys, cur.SurrogateKey)
		}
		cs.Inserts = append(cs.Inserts, model.DimensionRow{
			BusinessKey:   cand.BusinessKey,
			ContentHash:   cand.ContentHash,
			Attributes:    cand.Attributes,
			EffectiveDate: processedAt,
			IsCurrent:     true,
		})
	}
	return cs
}

// dedupe resolves multiple candidates per business key within one run: the
// candidate with the latest period date wins, ties broken by input order
// (later wins). A key with conflicting content hashes is logged, not
// silently collapsed.
func dedupe(candidates []Candidate) map[string]Candidate {
	out := make(map[string]Candidate, len(candidates))
	conflicts := make(map[string]bool)

	for _, c := range candidates {
		prev, seen := out[c.BusinessKey]
		if !seen {
			out[c.BusinessKey] = c
			continue
		}
		if prev.ContentHash != c.ContentHash {
			conflicts[c.BusinessKey] = true
		}
		if !c.PeriodDate.Before(prev.PeriodDate) {
			out[c.BusinessKey] = c
		}
	}

	for key := range conflicts {
		zap.L().Warn("scd: conflicting content hashes for business key in one run, keeping latest period",
			zap.String("business_key", key),
		)
	}
	return out
}
