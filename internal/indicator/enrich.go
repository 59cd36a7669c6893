package indicator

import "threatwatch/internal/common"

// Enrichment is secondary context for an indicator: who is behind it and what
// family it belongs to.
type Enrichment struct {
	Actor         string `json:"actor,omitempty"`
	Campaign      string `json:"campaign,omitempty"`
	MalwareFamily string `json:"malware_family,omitempty"`
	Description   string `json:"description,omitempty"`
}

// enrichmentTable maps threat types to known context. A production deployment
// would back this with a TIP lookup; the table keeps the interface contract
// (nil for unknown, never an error) identical either way.
var enrichmentTable = map[common.ThreatType]Enrichment{
	common.ThreatMalware: {
		MalwareFamily: "generic-trojan",
		Description:   "hash or callback associated with commodity malware",
	},
	common.ThreatPhishing: {
		Campaign:    "credential-harvest",
		Description: "domain or URL used in credential phishing",
	},
	common.ThreatCommandControl: {
		Actor:       "unattributed",
		Campaign:    "c2-infrastructure",
		Description: "infrastructure observed issuing commands to implants",
	},
	common.ThreatDataExfiltration: {
		Description: "endpoint observed receiving staged data",
	},
}

// Enrich returns contextual enrichment for the indicator, or nil when none is
// available. Absence of enrichment is not an error.
func (m *Matcher) Enrich(ind Indicator) *Enrichment {
	e, ok := enrichmentTable[ind.ThreatType]
	if !ok {
		return nil
	}
	cp := e
	return &cp
}
