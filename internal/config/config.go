// Package config holds the tunable field lists and thresholds the
// engine and codec operate on. Everything here is plain data loaded
// once and passed into entry points, never mutated afterwards.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CurrentVersion tags the config file format.
const CurrentVersion = 1

// EngineConfig collects the field sets and thresholds that drive
// deduplication, similarity matching and config generation.
type EngineConfig struct {
	Version int `yaml:"version"`

	// IdentityFields define exact-duplicate identity (8 fields).
	IdentityFields []string `yaml:"identity_fields"`
	// KeyFields are the five traffic-shape fields.
	KeyFields []string `yaml:"key_fields"`
	// CandidateFields are the merge candidates compared within a
	// stable-key bucket.
	CandidateFields []string `yaml:"candidate_fields"`
	// ExtraExcludedFields are excluded from the stable key on top of
	// the candidates, so naming differences never block a suggestion.
	ExtraExcludedFields []string `yaml:"extra_excluded_fields"`
	// AnchorFields form the minimal-context partition.
	AnchorFields []string `yaml:"anchor_fields"`

	// MinSimilarity gates suggestions; 0 emits every pair that differs.
	MinSimilarity float64 `yaml:"min_similarity"`
	// MaxNameLength bounds disambiguated rule names.
	MaxNameLength int `yaml:"max_name_length"`

	// NATTruthy lists the spellings that count as NAT enabled.
	NATTruthy []string `yaml:"nat_truthy"`

	// SSLVPNPlaceholder is rewritten to SSLVPNInterface in interface
	// token lists, and ZonePrefix marks the "zone.interface" shorthand.
	SSLVPNPlaceholder string `yaml:"sslvpn_placeholder"`
	SSLVPNInterface   string `yaml:"sslvpn_interface"`
	ZonePrefix        string `yaml:"zone_prefix"`
}

// Default returns the baseline configuration matching FortiManager
// policy exports.
func Default() *EngineConfig {
	return &EngineConfig{
		Version: CurrentVersion,
		IdentityFields: []string{
			"srcintf", "dstintf", "srcaddr", "dstaddr",
			"service", "schedule", "action", "nat",
		},
		KeyFields: []string{
			"srcaddr", "dstaddr", "srcintf", "dstintf", "service",
		},
		CandidateFields:     []string{"srcaddr", "dstaddr", "service"},
		ExtraExcludedFields: []string{"name", "policyid"},
		AnchorFields:        []string{"schedule", "action", "nat", "status"},
		MinSimilarity:       0.2,
		MaxNameLength:       35,
		NATTruthy:           []string{"enable", "1", "true", "yes"},
		SSLVPNPlaceholder:   "sslvpn_tun_intf",
		SSLVPNInterface:     "ssl.root",
		ZonePrefix:          "_",
	}
}

// ExcludedFields is the stable-key exclusion set for the standard
// suggestion flow: candidates plus the naming fields.
func (c *EngineConfig) ExcludedFields() []string {
	out := make([]string, 0, len(c.CandidateFields)+len(c.ExtraExcludedFields))
	out = append(out, c.CandidateFields...)
	out = append(out, c.ExtraExcludedFields...)
	return out
}

// Load reads a YAML config file. Missing file falls back to defaults;
// fields left unset in the file keep their default values.
func Load(path string) (*EngineConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	return cfg, nil
}
