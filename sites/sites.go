// Package sites turns source registry entries into runnable pipeline sites.
package sites

import (
	"fmt"

	"apartment-tracker/config"
	"apartment-tracker/fetcher"
	"apartment-tracker/pipeline"
	"apartment-tracker/scraper"
	"apartment-tracker/scraper/apartmentscom"
	"apartment-tracker/scraper/elle"
	"apartment-tracker/scraper/floorplan"
	"apartment-tracker/scraper/nema"
	"apartment-tracker/scraper/rentcafe"
	"apartment-tracker/scraper/willowbridge"
	"apartment-tracker/services"
	"apartment-tracker/utils"
)

// Deps are the shared collaborators handed to every adapter. Browser renders
// script-built pages and all detail pages; Static serves plain HTML sources.
type Deps struct {
	Browser fetcher.Fetcher
	Static  fetcher.Fetcher
	Config  *config.Config
	Logger  *utils.Logger
}

// Build wires one source to its family adapter.
func Build(src config.Source, deps Deps) (pipeline.Site, error) {
	timeout := deps.Config.PageTimeout()
	site := pipeline.Site{Name: src.Name, DetailFetcher: deps.Browser}

	var detail scraper.DetailExtractor
	switch src.Family {
	case config.FamilyWillowBridge:
		site.Adapter = willowbridge.New(src, deps.Browser, timeout, deps.Logger)
		detail = willowbridge.Detail
	case config.FamilyRentCafe:
		site.Adapter = rentcafe.New(src, deps.Browser, timeout, deps.Logger)
		detail = rentcafe.FlipCardExtractor
	case config.FamilyFloorPlan:
		a, err := floorplan.New(src, deps.Browser, timeout, deps.Logger)
		if err != nil {
			return pipeline.Site{}, err
		}
		site.Adapter = a
		detail = floorplan.Detail
	case config.FamilyElle:
		site.Adapter = elle.New(src, deps.Browser, timeout, deps.Logger)
		detail = elle.Detail
	case config.FamilyNema:
		site.Adapter = nema.New(src, deps.Static, timeout, deps.Logger)
	case config.FamilyApartmentsCom:
		site.Adapter = apartmentscom.New(src, deps.Browser, timeout, deps.Logger)
	default:
		return pipeline.Site{}, fmt.Errorf("source %q: %w: %q", src.Name, config.ErrUnknownFamily, src.Family)
	}

	if src.Detail {
		site.Detail = detail
	}
	return site, nil
}

// BuildAll builds every source, stopping at the first that cannot be wired.
func BuildAll(srcs []config.Source, deps Deps) ([]pipeline.Site, error) {
	out := make([]pipeline.Site, 0, len(srcs))
	for _, src := range srcs {
		site, err := Build(src, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, site)
	}
	return out, nil
}

// RulesTable returns the normalizer rules for each source, keyed by name.
func RulesTable(srcs []config.Source) map[string]services.Rules {
	table := make(map[string]services.Rules, len(srcs))
	for _, src := range srcs {
		r := familyRules(src)
		if src.Den {
			r = r.WithDen()
		}
		table[src.Name] = r
	}
	return table
}

func familyRules(src config.Source) services.Rules {
	switch src.Family {
	case config.FamilyWillowBridge:
		return willowbridge.Rules
	case config.FamilyRentCafe:
		return rentcafe.Rules
	case config.FamilyFloorPlan:
		if r, ok := floorplan.Rules[src.Layout]; ok {
			return r
		}
	case config.FamilyElle:
		return elle.Rules
	case config.FamilyNema:
		return nema.Rules
	case config.FamilyApartmentsCom:
		return apartmentscom.Rules
	}
	return services.DefaultRules
}
