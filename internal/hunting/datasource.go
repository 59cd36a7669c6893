package hunting

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"threatwatch/internal/behavior"
	"threatwatch/internal/indicator"
)

// StoreDataSource hunts across the indicator store and the event history the
// service has seen. Events returns the current history so the source always
// observes a fresh snapshot.
type StoreDataSource struct {
	Store  indicator.Store
	Events func() []behavior.SecurityEvent
}

func (s *StoreDataSource) Name() string { return "store" }

func (s *StoreDataSource) Search(ctx context.Context, q Query) ([]Finding, error) {
	var findings []Finding

	indicators, err := s.Store.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, ind := range indicators {
		matched := matchTerms(q.SearchTerms, ind.Value, string(ind.ThreatType), ind.Source)
		if len(matched) == 0 {
			continue
		}
		if !q.TimeRange.contains(ind.LastSeen) {
			continue
		}
		findings = append(findings, Finding{
			ID:        uuid.NewString(),
			Source:    "indicator-store",
			Summary:   fmt.Sprintf("indicator %s matches hunt terms", ind.Key()),
			Severity:  ind.Severity,
			Timestamp: ind.LastSeen,
			Matched:   matched,
		})
	}

	if s.Events == nil {
		return findings, nil
	}
	for _, ev := range s.Events() {
		matched := matchTerms(q.SearchTerms, ev.Type, ev.Source, ev.User, ev.Endpoint)
		if len(matched) == 0 {
			continue
		}
		if !q.TimeRange.contains(ev.Timestamp) {
			continue
		}
		if src, ok := q.Filters["source"]; ok && src != ev.Source {
			continue
		}
		findings = append(findings, Finding{
			ID:        uuid.NewString(),
			Source:    ev.Source,
			Entity:    ev.Entity(),
			Summary:   fmt.Sprintf("event %s on %s matches hunt terms", ev.Type, ev.Entity()),
			Severity:  ev.Severity,
			Timestamp: ev.Timestamp,
			Matched:   matched,
		})
	}
	return findings, nil
}

func matchTerms(terms []string, fields ...string) []string {
	var matched []string
	for _, term := range terms {
		lt := strings.ToLower(term)
		for _, f := range fields {
			if f != "" && strings.Contains(strings.ToLower(f), lt) {
				matched = append(matched, term)
				break
			}
		}
	}
	return matched
}
