package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"threatwatch/internal/common"
	"threatwatch/internal/indicator"
)

// HTTPFetcher pulls a feed over HTTP and decodes it with a provider-specific
// normalizer.
type HTTPFetcher struct {
	provider string
	client   *http.Client
	decode   func([]byte, Config) ([]indicator.Indicator, error)
}

func NewMISPFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{provider: "misp", client: client, decode: decodeMISP}
}

func NewOTXFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{provider: "otx", client: client, decode: decodeOTX}
}

// NewGenericFetcher handles feeds that already expose a flat JSON indicator list.
func NewGenericFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{provider: "generic", client: client, decode: decodeGeneric}
}

func (f *HTTPFetcher) Provider() string { return f.provider }

func (f *HTTPFetcher) Fetch(ctx context.Context, cfg Config) ([]indicator.Indicator, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.FeedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return f.decode(body, cfg)
}

// mispAttribute is the subset of a MISP attribute the engine consumes.
type mispAttribute struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Category  string `json:"category"`
	Comment   string `json:"comment"`
	Timestamp string `json:"timestamp"`
}

func decodeMISP(body []byte, cfg Config) ([]indicator.Indicator, error) {
	var payload struct {
		Response struct {
			Attribute []mispAttribute `json:"Attribute"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode misp payload: %w", err)
	}

	now := time.Now().UTC()
	var out []indicator.Indicator
	for _, attr := range payload.Response.Attribute {
		t, ok := mispType(attr.Type)
		if !ok {
			continue
		}
		out = append(out, indicator.Indicator{
			Type:       t,
			Value:      attr.Value,
			ThreatType: threatTypeFor(cfg.FeedType),
			Severity:   common.SeverityMedium,
			Confidence: 70,
			Source:     cfg.Name,
			FirstSeen:  now,
			LastSeen:   now,
			TLP:        common.TLPAmber,
		})
	}
	return out, nil
}

func mispType(t string) (indicator.Type, bool) {
	switch t {
	case "ip-src", "ip-dst":
		return indicator.TypeIP, true
	case "domain", "hostname":
		return indicator.TypeDomain, true
	case "url":
		return indicator.TypeURL, true
	case "md5", "sha1", "sha256":
		return indicator.TypeHash, true
	case "email-src":
		return indicator.TypeEmail, true
	}
	return "", false
}

func decodeOTX(body []byte, cfg Config) ([]indicator.Indicator, error) {
	var payload struct {
		Results []struct {
			Indicators []struct {
				Type      string `json:"type"`
				Indicator string `json:"indicator"`
			} `json:"indicators"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode otx payload: %w", err)
	}

	now := time.Now().UTC()
	var out []indicator.Indicator
	for _, pulse := range payload.Results {
		for _, ind := range pulse.Indicators {
			t, ok := otxType(ind.Type)
			if !ok {
				continue
			}
			out = append(out, indicator.Indicator{
				Type:       t,
				Value:      ind.Indicator,
				ThreatType: threatTypeFor(cfg.FeedType),
				Severity:   common.SeverityMedium,
				Confidence: 60,
				Source:     cfg.Name,
				FirstSeen:  now,
				LastSeen:   now,
				TLP:        common.TLPGreen,
			})
		}
	}
	return out, nil
}

func otxType(t string) (indicator.Type, bool) {
	switch t {
	case "IPv4", "IPv6":
		return indicator.TypeIP, true
	case "domain", "hostname":
		return indicator.TypeDomain, true
	case "URL":
		return indicator.TypeURL, true
	case "FileHash-MD5", "FileHash-SHA1", "FileHash-SHA256":
		return indicator.TypeHash, true
	}
	return "", false
}

// genericRecord is the flat schema: feeds that need no provider dialect.
type genericRecord struct {
	Type       indicator.Type    `json:"type"`
	Value      string            `json:"value"`
	ThreatType common.ThreatType `json:"threat_type"`
	Severity   common.Severity   `json:"severity"`
	Confidence float64           `json:"confidence"`
	Tags       []string          `json:"tags"`
	TLP        common.TLP        `json:"tlp"`
	FirstSeen  time.Time         `json:"first_seen"`
	LastSeen   time.Time         `json:"last_seen"`
}

func decodeGeneric(body []byte, cfg Config) ([]indicator.Indicator, error) {
	var records []genericRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode feed payload: %w", err)
	}

	now := time.Now().UTC()
	out := make([]indicator.Indicator, 0, len(records))
	for _, r := range records {
		ind := indicator.Indicator{
			Type:       r.Type,
			Value:      r.Value,
			ThreatType: r.ThreatType,
			Severity:   r.Severity,
			Confidence: r.Confidence,
			Source:     cfg.Name,
			FirstSeen:  r.FirstSeen,
			LastSeen:   r.LastSeen,
			Tags:       r.Tags,
			TLP:        r.TLP,
		}
		if ind.ThreatType == "" {
			ind.ThreatType = threatTypeFor(cfg.FeedType)
		}
		if ind.Severity == "" {
			ind.Severity = common.SeverityMedium
		}
		if ind.FirstSeen.IsZero() {
			ind.FirstSeen = now
		}
		if ind.LastSeen.IsZero() {
			ind.LastSeen = ind.FirstSeen
		}
		out = append(out, ind)
	}
	return out, nil
}

func threatTypeFor(feedType string) common.ThreatType {
	switch feedType {
	case "malware", "hashes":
		return common.ThreatMalware
	case "phishing":
		return common.ThreatPhishing
	case "c2":
		return common.ThreatCommandControl
	}
	return common.ThreatIntrusion
}
