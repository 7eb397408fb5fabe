// Package config carries the embedded registry of known contracts and
// storage slots, keyed by chain id. The registry only adds human-readable
// labels to validation reports; lookups for unknown contracts fall back to
// placeholder values and never fail.
package config

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed registry.yaml
var embeddedRegistryFile []byte

type Slot struct {
	Type    string `yaml:"type"`
	Summary string `yaml:"summary"`
}

type Contract struct {
	Name  string          `yaml:"name"`
	Slots map[string]Slot `yaml:"slots"`
}

type Registry struct {
	Contracts map[string]map[string]Contract `yaml:"contracts"`
}

var DEFAULT_CONTRACT = Contract{Name: "<<ContractName>>", Slots: map[string]Slot{}}
var DEFAULT_SLOT = Slot{Type: "<<DecodedKind>>", Summary: "<<Summary>>"}

// Load parses the embedded registry file.
func Load() (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(embeddedRegistryFile, &reg); err != nil {
		return nil, fmt.Errorf("error parsing embedded registry file: %w", err)
	}
	return &reg, nil
}

// Contract looks up a contract by chain id and address, falling back to the
// placeholder contract when unknown.
func (r *Registry) Contract(chainID, address string) Contract {
	contract, ok := r.Contracts[chainID][strings.ToLower(address)]
	if !ok {
		return DEFAULT_CONTRACT
	}
	return contract
}

// Slot looks up a storage slot within a contract, falling back to the
// placeholder slot when unknown.
func (c *Contract) Slot(slot string) Slot {
	meta, ok := c.Slots[strings.ToLower(slot)]
	if !ok {
		return DEFAULT_SLOT
	}
	return meta
}
