package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Site families understood by the adapter registry.
const (
	FamilyWillowBridge  = "willowbridge"
	FamilyRentCafe      = "rentcafe"
	FamilyFloorPlan     = "floorplan"
	FamilyElle          = "elle"
	FamilyNema          = "nema"
	FamilyApartmentsCom = "apartmentscom"
)

// Source registry validation errors.
var (
	ErrNoSources         = errors.New("at least one source is required")
	ErrSourceMissingName = errors.New("source name is required")
	ErrSourceMissingURL  = errors.New("source url is required")
	ErrUnknownFamily     = errors.New("unknown source family")
	ErrDuplicateSource   = errors.New("duplicate source name")
	ErrUnknownSource     = errors.New("unknown source")
)

// Source describes one property website and the adapter family that reads it.
type Source struct {
	Name   string `yaml:"name"`
	Family string `yaml:"family"`
	Layout string `yaml:"layout"`
	URL    string `yaml:"url"`
	Detail bool   `yaml:"detail"`
	// Den counts bedroom labels naming a den as 1.5 beds.
	Den     bool `yaml:"den"`
	Enabled bool `yaml:"enabled"`
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

var knownFamilies = map[string]bool{
	FamilyWillowBridge:  true,
	FamilyRentCafe:      true,
	FamilyFloorPlan:     true,
	FamilyElle:          true,
	FamilyNema:          true,
	FamilyApartmentsCom: true,
}

// LoadSources reads the YAML source registry at path. A missing file yields
// DefaultSources.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSources(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("sources: read %q: %w", path, err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates a YAML source registry.
func ParseSources(data []byte) ([]Source, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("sources: parse yaml: %w", err)
	}
	if err := ValidateSources(f.Sources); err != nil {
		return nil, err
	}
	return f.Sources, nil
}

// ValidateSources checks every source entry and name uniqueness.
func ValidateSources(sources []Source) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	seen := make(map[string]struct{}, len(sources))
	for i, s := range sources {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("sources[%d]: %w", i, ErrSourceMissingName)
		}
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("source %q: %w", s.Name, ErrSourceMissingURL)
		}
		if !knownFamilies[s.Family] {
			return fmt.Errorf("source %q: %w: %q", s.Name, ErrUnknownFamily, s.Family)
		}
		key := strings.ToLower(s.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("source %q: %w", s.Name, ErrDuplicateSource)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Select returns the enabled sources, or the named ones (case-insensitive,
// enabled or not) when names is non-empty.
func Select(sources []Source, names []string) ([]Source, error) {
	if len(names) == 0 {
		var enabled []Source
		for _, s := range sources {
			if s.Enabled {
				enabled = append(enabled, s)
			}
		}
		return enabled, nil
	}

	byName := make(map[string]Source, len(sources))
	for _, s := range sources {
		byName[strings.ToLower(s.Name)] = s
	}
	selected := make([]Source, 0, len(names))
	for _, n := range names {
		s, ok := byName[strings.ToLower(n)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSource, n)
		}
		selected = append(selected, s)
	}
	return selected, nil
}

// DefaultSources is the built-in registry of tracked Chicago properties.
func DefaultSources() []Source {
	return []Source{
		{Name: "1000M", Family: FamilyWillowBridge, URL: "https://1000mchicago.com/floor-plans/?availability-tabs=apartments-tab", Den: true, Enabled: true},
		{Name: "LINEA", Family: FamilyWillowBridge, URL: "https://lineachicago.com/floor-plans/?availability-tabs=apartments-tab", Detail: true, Enabled: true},
		{Name: "Eleven 30", Family: FamilyRentCafe, URL: "https://1130smichigan.com/available-residences/", Detail: true, Enabled: true},
		{Name: "Eleven 40", Family: FamilyFloorPlan, Layout: "live1140", URL: "https://www.live1140.com/availableunits", Detail: true, Enabled: true},
		{Name: "Reed", Family: FamilyFloorPlan, Layout: "reed", URL: "https://thereedapts.com/floor-plans", Detail: true, Enabled: true},
		{Name: "ELLE", Family: FamilyElle, URL: "https://www.theellechicago.com/floorplans", Detail: true, Enabled: true},
		{Name: "Grand Central", Family: FamilyElle, URL: "https://www.thegrandcentralapartments.com/floorplans", Detail: true, Enabled: false},
		{Name: "NEMA Chicago", Family: FamilyNema, URL: "https://www.rentnemachicago.com/availability#all", Enabled: true},
	}
}
