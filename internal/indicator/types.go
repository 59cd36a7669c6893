package indicator

import (
	"context"
	"time"

	"threatwatch/internal/common"
)

// Type classifies what kind of observable an indicator is.
type Type string

const (
	TypeIP     Type = "ip"
	TypeDomain Type = "domain"
	TypeURL    Type = "url"
	TypeHash   Type = "hash"
	TypeEmail  Type = "email"
)

// Indicator is a piece of threat intelligence keyed by (Type, Value).
type Indicator struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	Value      string            `json:"value"`
	ThreatType common.ThreatType `json:"threat_type"`
	Severity   common.Severity   `json:"severity"`
	Confidence float64           `json:"confidence"` // 0..100
	Source     string            `json:"source"`
	FirstSeen  time.Time         `json:"first_seen"`
	LastSeen   time.Time         `json:"last_seen"`
	Tags       []string          `json:"tags,omitempty"`
	TLP        common.TLP        `json:"tlp,omitempty"`
}

// Key returns the store key for the indicator.
func (i Indicator) Key() string { return Key(i.Type, i.Value) }

// Key builds the canonical (type, value) store key.
func Key(t Type, value string) string { return string(t) + ":" + value }

// Outcome reports what an upsert did.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeUpdated
	OutcomeUnchanged
)

// Store persists indicators. The store exclusively owns indicator lifetime;
// everything else holds indicators by reference.
type Store interface {
	Upsert(ctx context.Context, ind Indicator) (Outcome, error)
	Get(ctx context.Context, t Type, value string) (*Indicator, error)
	Count(ctx context.Context) (int, error)
	All(ctx context.Context) ([]Indicator, error)
}

// merge folds a re-sighting into an existing record. FirstSeen is preserved;
// LastSeen only moves forward; confidence takes the highest report.
func merge(existing *Indicator, incoming Indicator) bool {
	changed := false
	if incoming.LastSeen.After(existing.LastSeen) {
		existing.LastSeen = incoming.LastSeen
		changed = true
	}
	if incoming.Confidence > existing.Confidence {
		existing.Confidence = incoming.Confidence
		changed = true
	}
	if incoming.Severity.Rank() > existing.Severity.Rank() {
		existing.Severity = incoming.Severity
		changed = true
	}
	for _, tag := range incoming.Tags {
		if !contains(existing.Tags, tag) {
			existing.Tags = append(existing.Tags, tag)
			changed = true
		}
	}
	return changed
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
