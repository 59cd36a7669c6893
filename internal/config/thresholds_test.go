package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, 1.0, th.AnomalyLow)
	assert.Equal(t, 2.0, th.AnomalyMedium)
	assert.Equal(t, 3.0, th.AnomalyHigh)
	assert.Equal(t, 0.3, th.DriftAction)
	assert.Equal(t, 25, th.MatchWeight)
	assert.Less(t, th.AnomalyLow, th.AnomalyMedium)
	assert.Less(t, th.AnomalyMedium, th.AnomalyHigh)
}

func TestLoadThresholdsEmptyPath(t *testing.T) {
	th, err := LoadThresholds("")
	require.NoError(t, err)
	assert.Equal(t, DefaultThresholds(), th)
}

func TestLoadThresholdsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	doc := "anomaly_high: 4.5\nmatch_weight: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	th, err := LoadThresholds(path)
	require.NoError(t, err)
	assert.Equal(t, 4.5, th.AnomalyHigh)
	assert.Equal(t, 10, th.MatchWeight)
	// Unset fields keep their defaults.
	assert.Equal(t, 1.0, th.AnomalyLow)
	assert.Equal(t, 0.3, th.DriftAction)
}

func TestLoadThresholdsMissingFile(t *testing.T) {
	th, err := LoadThresholds(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	assert.Equal(t, DefaultThresholds(), th, "defaults survive a load failure")
}
