package response

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"threatwatch/internal/common"
	"threatwatch/internal/indicator"
	"threatwatch/internal/notify"
)

// ActionRunner executes a single playbook step. Injectable so tests drive
// deterministic outcomes and production wires real effectors.
type ActionRunner interface {
	Run(ctx context.Context, step Step, vars map[string]string) (map[string]string, error)
}

// DefaultRunner implements the built-in step actions against the indicator
// store and the notification sink.
type DefaultRunner struct {
	Store indicator.Store
	Sink  notify.Sink
}

func (r *DefaultRunner) Run(ctx context.Context, step Step, vars map[string]string) (map[string]string, error) {
	switch step.Action {
	case "isolate-endpoints":
		return r.isolateEndpoints(vars)
	case "block-indicators":
		return r.blockIndicators(ctx, step, vars)
	case "disable-accounts":
		return r.disableAccounts(vars)
	case "snapshot-forensics":
		return map[string]string{"snapshot_id": uuid.NewString()}, nil
	case "notify-stakeholders":
		return r.notifyStakeholders(ctx, step, vars)
	case "restore-service":
		return map[string]string{"restored": vars["affected_assets"]}, nil
	}
	return nil, fmt.Errorf("unknown action %q", step.Action)
}

func (r *DefaultRunner) isolateEndpoints(vars map[string]string) (map[string]string, error) {
	assets := vars["affected_assets"]
	if assets == "" {
		return map[string]string{"isolated_hosts": ""}, nil
	}
	return map[string]string{"isolated_hosts": assets}, nil
}

// blockIndicators writes blocklist entries back into the indicator store so
// subsequent matches surface the block decision. Indicators come from the
// shared variables as comma-separated "type:value" pairs.
func (r *DefaultRunner) blockIndicators(ctx context.Context, step Step, vars map[string]string) (map[string]string, error) {
	list := vars["indicators"]
	if list == "" {
		list = step.Parameters["indicators"]
	}
	blocked := 0
	now := time.Now().UTC()
	for _, pair := range strings.Split(list, ",") {
		typ, value, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || value == "" {
			continue
		}
		_, err := r.Store.Upsert(ctx, indicator.Indicator{
			Type:       indicator.Type(typ),
			Value:      value,
			ThreatType: common.ThreatMalware,
			Severity:   common.SeverityHigh,
			Confidence: 90,
			Source:     "response-orchestrator",
			FirstSeen:  now,
			LastSeen:   now,
			Tags:       []string{"blocked"},
		})
		if err != nil {
			return nil, err
		}
		blocked++
	}
	return map[string]string{"blocked_count": fmt.Sprintf("%d", blocked)}, nil
}

func (r *DefaultRunner) disableAccounts(vars map[string]string) (map[string]string, error) {
	return map[string]string{"disabled_accounts": vars["accounts"]}, nil
}

func (r *DefaultRunner) notifyStakeholders(ctx context.Context, step Step, vars map[string]string) (map[string]string, error) {
	if r.Sink == nil {
		return map[string]string{"notified": "false"}, nil
	}
	payload := map[string]string{
		"threat_id": vars["threat_id"],
		"message":   step.Parameters["message"],
	}
	if err := r.Sink.Publish(ctx, "stakeholder-notification", payload); err != nil {
		return nil, err
	}
	return map[string]string{"notified": "true"}, nil
}
