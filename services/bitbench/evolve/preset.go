// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evolve

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/bitbench/services/bitbench/bitops"
	"github.com/AleutianAI/bitbench/services/bitbench/faults"
)

// Preset names an initial state.
type Preset int

const (
	// PresetUnknown is the zero value.
	PresetUnknown Preset = iota
	// PresetVoid is all zeros.
	PresetVoid
	// PresetMaxOrder is all ones.
	PresetMaxOrder
	// PresetAlternating is 0xAAAA... per word, a checkerboard across the state.
	PresetAlternating
	// PresetHighContrast sets the top half of the bits and clears the bottom half.
	PresetHighContrast
	// PresetExternal takes caller-supplied words.
	PresetExternal
)

// String returns the upper-case preset name.
func (p Preset) String() string {
	switch p {
	case PresetVoid:
		return "VOID"
	case PresetMaxOrder:
		return "MAX_ORDER"
	case PresetAlternating:
		return "ALTERNATING"
	case PresetHighContrast:
		return "HIGH_CONTRAST"
	case PresetExternal:
		return "EXTERNAL"
	default:
		return fmt.Sprintf("PRESET(%d)", int(p))
	}
}

// PresetNames lists the accepted preset names.
func PresetNames() []string {
	return []string{"VOID", "MAX_ORDER", "ALTERNATING", "HIGH_CONTRAST", "EXTERNAL"}
}

// ParsePreset resolves a preset name, case-insensitively.
func ParsePreset(name string) (Preset, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "VOID":
		return PresetVoid, nil
	case "MAX_ORDER":
		return PresetMaxOrder, nil
	case "ALTERNATING":
		return PresetAlternating, nil
	case "HIGH_CONTRAST":
		return PresetHighContrast, nil
	case "EXTERNAL":
		return PresetExternal, nil
	default:
		return PresetUnknown, faults.New(faults.InvalidArgument, "evolve.parse_preset", name,
			"unknown initial state, want one of %s", strings.Join(PresetNames(), ", "))
	}
}

// Wide builds the preset state at the given width.
//
// # Inputs
//
//   - width: A supported bitops width.
//   - external: Words for PresetExternal (width/64 of them, least significant
//     first). Ignored by the other presets.
//
// # Outputs
//
//   - *bitops.WideState: The initial state.
//   - error: faults.InvalidArgument for bad widths, unknown presets or a
//     missing/short external pattern.
func (p Preset) Wide(width int, external []uint64) (*bitops.WideState, error) {
	switch p {
	case PresetVoid:
		return bitops.NewWideState(width)
	case PresetMaxOrder:
		return bitops.Filled(width, bitops.AllOnes)
	case PresetAlternating:
		return bitops.Filled(width, bitops.Alternating)
	case PresetHighContrast:
		s, err := bitops.NewWideState(width)
		if err != nil {
			return nil, err
		}
		for i := width / 2; i < width; i++ {
			s.SetBit(i, true)
		}
		return s, nil
	case PresetExternal:
		if external == nil {
			return nil, faults.New(faults.InvalidArgument, "evolve.preset", p.String(),
				"external initial state requires caller-supplied words")
		}
		return bitops.FromWords(width, external)
	default:
		return nil, faults.New(faults.InvalidArgument, "evolve.preset", p.String(), "unknown preset")
	}
}

// Word builds the preset as a single 64-bit word.
func (p Preset) Word(external []uint64) (uint64, error) {
	s, err := p.Wide(bitops.WordBits, external)
	if err != nil {
		return 0, err
	}
	return s.Word(0), nil
}
