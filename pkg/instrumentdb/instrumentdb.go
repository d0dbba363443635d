// Package instrumentdb loads the instrument database (§6's instrument
// record) from a YAML file, mirroring InstrumentManager<Order>::Load from
// original_source/matching-engine/src/Engine_MatchingEngine.cpp: a loader
// that calls a per-instrument handler and fails the whole load on a
// duplicate product id or name. YAML parsing follows the teacher's
// config/config.go, which reaches for gopkg.in/yaml.v3 for exactly this
// kind of file.
package instrumentdb

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/silvermoon-h/matching-engine-2/pkg/core"
)

// record is the on-disk YAML shape of one instrument (§6).
type record struct {
	ProductID             uint32  `yaml:"product_id"`
	Name                  string  `yaml:"name"`
	Currency              string  `yaml:"currency"`
	TickSize              float64 `yaml:"tick_size"`
	LotSize               float64 `yaml:"lot_size"`
	InitialReferencePrice float64 `yaml:"initial_reference_price"`
}

type file struct {
	Instruments []record `yaml:"instruments"`
}

// Load reads path and returns the instrument set, rejecting a database
// with a duplicate product_id, a duplicate name, or a non-positive
// tick_size/lot_size — the same checks the original's Instrument<Order>
// constructor and InstrumentManager::Load handler enforce.
func Load(path string) ([]core.Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.ConfigError{Source: path, Err: err}
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &core.ConfigError{Source: path, Err: err}
	}

	seenIDs := make(map[uint32]bool, len(f.Instruments))
	seenNames := make(map[string]bool, len(f.Instruments))
	out := make([]core.Instrument, 0, len(f.Instruments))

	for _, r := range f.Instruments {
		if seenIDs[r.ProductID] {
			return nil, &core.ConfigError{Source: path, Err: fmt.Errorf("duplicate product_id %d (%s): %w", r.ProductID, r.Name, core.ErrDuplicateInstrument)}
		}
		if seenNames[r.Name] {
			return nil, &core.ConfigError{Source: path, Err: fmt.Errorf("duplicate instrument name %q: %w", r.Name, core.ErrDuplicateInstrument)}
		}
		if r.TickSize <= 0 {
			return nil, &core.ConfigError{Source: path, Err: fmt.Errorf("instrument %q: tick_size must be positive", r.Name)}
		}
		if r.LotSize <= 0 {
			return nil, &core.ConfigError{Source: path, Err: fmt.Errorf("instrument %q: lot_size must be positive", r.Name)}
		}
		currency, ok := core.ParseCurrency(r.Currency)
		if !ok {
			return nil, &core.ConfigError{Source: path, Err: fmt.Errorf("instrument %q: unknown currency %q", r.Name, r.Currency)}
		}

		seenIDs[r.ProductID] = true
		seenNames[r.Name] = true

		out = append(out, core.Instrument{
			ProductID:             r.ProductID,
			Name:                  r.Name,
			Currency:              currency,
			TickSize:              fpdecimal.FromFloat(r.TickSize),
			LotSize:               fpdecimal.FromFloat(r.LotSize),
			InitialReferencePrice: fpdecimal.FromFloat(r.InitialReferencePrice),
		})
	}

	return out, nil
}
