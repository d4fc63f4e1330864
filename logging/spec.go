package logging

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Spec is a base level plus per-component overrides.
//
// Format: "<base-level>[,<component>=<level>]..."
//
// Examples:
//   - "info"
//   - "warn,reconciler=debug"
//   - "info,manager=debug,server=trace"
type Spec struct {
	BaseLevel  Level
	Components map[string]Level
}

// ParseSpec parses a log spec. An empty string means info with no
// overrides. A bare level is only accepted as the first element.
func ParseSpec(s string) (Spec, error) {
	spec := Spec{BaseLevel: LevelInfo, Components: map[string]Level{}}

	for i, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		name, value, found := strings.Cut(field, "=")
		if !found {
			if i > 0 {
				return spec, fmt.Errorf("base level %q must be first in spec", field)
			}
			lvl, err := ParseLevel(field)
			if err != nil {
				return spec, err
			}
			spec.BaseLevel = lvl
			continue
		}
		if err := spec.addOverride(strings.TrimSpace(name), value); err != nil {
			return spec, err
		}
	}
	return spec, nil
}

func (s *Spec) addOverride(name, value string) error {
	if name == "" {
		return fmt.Errorf("empty component name in %q", "="+value)
	}
	lvl, err := ParseLevel(value)
	if err != nil {
		return fmt.Errorf("invalid level for component %q: %w", name, err)
	}
	s.Components[name] = lvl
	return nil
}

// LevelFor returns the level for component, falling back to the base.
func (s *Spec) LevelFor(component string) Level {
	if level, ok := s.Components[component]; ok {
		return level
	}
	return s.BaseLevel
}

// String returns the spec in parseable form with components sorted.
func (s *Spec) String() string {
	parts := []string{s.BaseLevel.String()}
	for _, component := range slices.Sorted(maps.Keys(s.Components)) {
		parts = append(parts, component+"="+s.Components[component].String())
	}
	return strings.Join(parts, ",")
}
