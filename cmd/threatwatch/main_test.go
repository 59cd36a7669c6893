package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatwatch/internal/behavior"
	"threatwatch/internal/common"
)

func TestPromoteAnomalyGatedByDrift(t *testing.T) {
	// Below the drift-action threshold nothing is promoted, whatever the
	// severity says.
	_, ok := promoteAnomaly(&behavior.AnomalyDetectionResult{
		DeviationMagnitude: 0.1,
		Severity:           common.SeverityHigh,
		AutomaticResponse:  true,
		Promote:            false,
	})
	assert.False(t, ok)

	threat, ok := promoteAnomaly(&behavior.AnomalyDetectionResult{
		DeviationMagnitude: 2.4,
		Severity:           common.SeverityHigh,
		AutomaticResponse:  true,
		Promote:            true,
	})
	require.True(t, ok)
	assert.Equal(t, common.ThreatAnomalous, threat.Type)
	assert.Equal(t, common.SeverityHigh, threat.Severity)
	assert.Equal(t, 24.0, threat.Confidence)
}
