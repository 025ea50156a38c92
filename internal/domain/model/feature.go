package model

// FeatureCode identifies a meterable capability. The set is closed: quota
// operations against codes outside this list are rejected at the overlay
// boundary before anything is written.
type FeatureCode string

const (
	FeatureStorageSpace     FeatureCode = "storage_space"
	FeatureArticlesPerMonth FeatureCode = "articles_per_month"
	FeaturePlatformAccounts FeatureCode = "platform_accounts"
	FeatureAIGenerations    FeatureCode = "ai_generations"
	FeatureKnowledgeBases   FeatureCode = "knowledge_bases"
)

var knownFeatures = map[FeatureCode]struct{}{
	FeatureStorageSpace:     {},
	FeatureArticlesPerMonth: {},
	FeaturePlatformAccounts: {},
	FeatureAIGenerations:    {},
	FeatureKnowledgeBases:   {},
}

func (f FeatureCode) Valid() bool {
	_, ok := knownFeatures[f]
	return ok
}

// UnlimitedQuota is the sentinel value meaning "no ceiling".
const UnlimitedQuota = -1

// CustomQuotas is the per-subscription override map layered on top of the
// plan's default feature table. Stored as a JSON column; nil means no
// overrides.
type CustomQuotas map[FeatureCode]int

// Clone returns a copy so callers can merge without mutating shared state.
func (q CustomQuotas) Clone() CustomQuotas {
	if q == nil {
		return nil
	}
	out := make(CustomQuotas, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// Lookup returns the override for a feature, if present.
func (q CustomQuotas) Lookup(code FeatureCode) (int, bool) {
	if q == nil {
		return 0, false
	}
	v, ok := q[code]
	return v, ok
}
