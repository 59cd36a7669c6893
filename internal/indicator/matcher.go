package indicator

import (
	"context"
	"time"
)

// Lookup is a (type, value) pair to match against the store.
type Lookup struct {
	Type  Type   `json:"type"`
	Value string `json:"value"`
}

// Match is a hit against the store, with provenance.
type Match struct {
	Indicator  Indicator `json:"indicator"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
}

// IntelligenceResult is the outcome of matching a batch of observables.
type IntelligenceResult struct {
	Matches   []Match   `json:"matches"`
	Unmatched []Lookup  `json:"unmatched,omitempty"`
	RiskScore int       `json:"risk_score"`
	QueriedAt time.Time `json:"queried_at"`
}

// Matcher answers match and enrichment queries against a Store.
type Matcher struct {
	store  Store
	weight int
}

func NewMatcher(store Store, matchWeight int) *Matcher {
	return &Matcher{store: store, weight: matchWeight}
}

// Query looks up each observable by exact (type, value). Observables with no
// stored indicator produce no match; that is a valid empty result, not an error.
func (m *Matcher) Query(ctx context.Context, lookups []Lookup) (*IntelligenceResult, error) {
	res := &IntelligenceResult{QueriedAt: time.Now().UTC()}
	for _, l := range lookups {
		ind, err := m.store.Get(ctx, l.Type, l.Value)
		if err != nil {
			return nil, err
		}
		if ind == nil {
			res.Unmatched = append(res.Unmatched, l)
			continue
		}
		res.Matches = append(res.Matches, Match{
			Indicator:  *ind,
			Source:     ind.Source,
			Confidence: ind.Confidence,
		})
	}
	res.RiskScore = m.RiskScore(len(res.Matches))
	return res, nil
}

// RiskScore is the single authoritative scoring function for indicator
// matches. Callers must not recompute risk on their own.
func (m *Matcher) RiskScore(matches int) int {
	score := matches * m.weight
	if score > 100 {
		return 100
	}
	return score
}
