package staging

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/sells-group/rent-signals/internal/model"
)

// nullSentinel stands in for absent fields inside hash input so "field
// absent" hashes deterministically instead of producing an unstable key.
const nullSentinel = "__null__"

// hashFields returns the 128-bit content hash of a canonical join of fields.
// Matches the warehouse convention of md5 over pipe-delimited lowercased
// values.
func hashFields(fields ...string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			f = nullSentinel
		}
		parts[i] = f
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// BusinessKey derives the stable identity key for an observation from its
// immutable identity fields (source and provider entity ID). It never changes
// for the same real-world entity, regardless of attribute churn.
func BusinessKey(obs model.RawObservation) string {
	return hashFields(obs.Source, obs.EntityID)
}

// ContentHash digests the mutable descriptive attributes tracked for SCD2
// change detection. It changes iff a tracked attribute changes.
func ContentHash(rec model.StagedRecord) string {
	pop := ""
	if rec.Population != nil {
		pop = strconv.FormatInt(*rec.Population, 10)
	}
	return hashFields(
		rec.EntityName,
		rec.RegionType,
		rec.State,
		rec.County,
		rec.Metro,
		pop,
		rec.SizeCategory,
	)
}
