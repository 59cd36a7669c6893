package hunting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"threatwatch/internal/common"
	"threatwatch/internal/indicator"
	"threatwatch/internal/response"
)

// ThreatDirectory looks up known threat events. The response engine satisfies
// this directly.
type ThreatDirectory interface {
	GetThreat(id string) (*response.ThreatEvent, error)
}

// Attribution is the attempted who-did-it for an investigation. Unresolved
// attribution is a valid terminal state, which is why investigations carry a
// nullable pointer rather than a required field.
type Attribution struct {
	Actor      string  `json:"actor"`
	Campaign   string  `json:"campaign,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Evidence is one supporting artifact collected during an investigation.
type Evidence struct {
	Kind        string    `json:"kind"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
	ObservedAt  time.Time `json:"observed_at"`
}

// ImpactAssessment estimates blast radius.
type ImpactAssessment struct {
	AffectedAssets []string        `json:"affected_assets,omitempty"`
	ImpactScore    int             `json:"impact_score"`
	Severity       common.Severity `json:"severity"`
}

// InvestigationResult is the deep-dive outcome for one threat.
type InvestigationResult struct {
	ThreatID    string                     `json:"threat_id"`
	Status      common.InvestigationStatus `json:"status"`
	Evidence    []Evidence                 `json:"evidence,omitempty"`
	Timeline    []TimelineEntry            `json:"timeline,omitempty"`
	Attribution *Attribution               `json:"attribution,omitempty"`
	Impact      ImpactAssessment           `json:"impact"`
	StartedAt   time.Time                  `json:"started_at"`
	CompletedAt time.Time                  `json:"completed_at"`
}

// Investigator performs deep dives on known threats, pulling evidence from
// the indicator store and enrichment context from the matcher.
type Investigator struct {
	Directory ThreatDirectory
	Store     indicator.Store
	Matcher   *indicator.Matcher
}

// Investigate builds the full picture for a known threat. Unknown ids fail
// with a NotFoundError.
func (inv *Investigator) Investigate(ctx context.Context, threatID string) (*InvestigationResult, error) {
	threat, err := inv.Directory.GetThreat(threatID)
	if err != nil {
		return nil, err
	}

	res := &InvestigationResult{
		ThreatID:  threat.ID,
		Status:    common.InvestigationInProgress,
		StartedAt: time.Now().UTC(),
	}

	indicators, err := inv.Store.All(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]indicator.Indicator, len(indicators))
	for _, ind := range indicators {
		byID[ind.ID] = ind
	}

	for _, id := range threat.IndicatorIDs {
		ind, ok := byID[id]
		if !ok {
			continue
		}
		res.Evidence = append(res.Evidence, Evidence{
			Kind:        "indicator",
			Reference:   ind.Key(),
			Description: fmt.Sprintf("%s indicator from %s, confidence %.0f", ind.ThreatType, ind.Source, ind.Confidence),
			ObservedAt:  ind.LastSeen,
		})
		res.Timeline = append(res.Timeline, TimelineEntry{
			Timestamp: ind.FirstSeen,
			Summary:   "first sighting of " + ind.Key(),
			Source:    ind.Source,
		})

		// Attribution comes from enrichment when any linked indicator has a
		// named actor. Staying unattributed is fine.
		if res.Attribution == nil {
			if enr := inv.Matcher.Enrich(ind); enr != nil && enr.Actor != "" {
				res.Attribution = &Attribution{
					Actor:      enr.Actor,
					Campaign:   enr.Campaign,
					Confidence: ind.Confidence / 100 * 0.6,
				}
			}
		}
	}
	sort.Slice(res.Timeline, func(i, j int) bool {
		return res.Timeline[i].Timestamp.Before(res.Timeline[j].Timestamp)
	})

	res.Impact = ImpactAssessment{
		AffectedAssets: threat.AffectedAssets,
		ImpactScore:    threat.ImpactScore,
		Severity:       threat.Severity,
	}
	res.Status = common.InvestigationCompleted
	res.CompletedAt = time.Now().UTC()
	return res, nil
}
