// Package rules provides the per-state immunization requirement lookup.
// Requirement sets are loaded from YAML, keyed by state code and then by age
// or school year, and compiled once so the validation engine never re-parses
// condition text.
package rules

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/savegress/vaxguard/internal/validation"
	"github.com/savegress/vaxguard/pkg/models"
	"gopkg.in/yaml.v3"
)

// AgeRequirement attaches an age key to a requirement in the YAML file.
type AgeRequirement struct {
	Age                int `yaml:"age"`
	models.Requirement `yaml:",inline"`
}

// SchoolYearRequirement attaches a school-year key to a requirement.
type SchoolYearRequirement struct {
	SchoolYear         string `yaml:"schoolYear"`
	models.Requirement `yaml:",inline"`
}

// StateConfig is one state's requirement tree in the YAML file.
type StateConfig struct {
	Age        []AgeRequirement        `yaml:"age"`
	SchoolYear []SchoolYearRequirement `yaml:"schoolYear"`
}

// File is the on-disk requirements document.
type File struct {
	States map[string]StateConfig `yaml:"states"`
}

// Repository answers requirement lookups. It is immutable after
// construction, so lookups are safe from any number of goroutines.
type Repository struct {
	byAge        map[string]map[int][]validation.CompiledRequirement
	bySchoolYear map[string]map[string][]validation.CompiledRequirement
}

// Load reads and compiles a requirements YAML file. Environment variables in
// the file are expanded before parsing, matching the config loader.
func Load(path string, log zerolog.Logger) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requirements file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parse requirements file: %w", err)
	}

	repo := NewRepository(f)
	log.Info().Int("states", len(f.States)).Str("path", path).Msg("loaded immunization requirements")
	return repo, nil
}

// NewRepository compiles a requirements document into lookup form.
// Unparsable condition strings are kept (they evaluate to UNDETERMINED) so a
// bad entry degrades one requirement rather than rejecting the file.
func NewRepository(f File) *Repository {
	repo := &Repository{
		byAge:        make(map[string]map[int][]validation.CompiledRequirement),
		bySchoolYear: make(map[string]map[string][]validation.CompiledRequirement),
	}

	for state, cfg := range f.States {
		ages := make(map[int][]validation.CompiledRequirement)
		for _, ar := range cfg.Age {
			ages[ar.Age] = append(ages[ar.Age], validation.Compile(ar.Requirement))
		}
		if len(ages) > 0 {
			repo.byAge[state] = ages
		}

		years := make(map[string][]validation.CompiledRequirement)
		for _, sr := range cfg.SchoolYear {
			years[sr.SchoolYear] = append(years[sr.SchoolYear], validation.Compile(sr.Requirement))
		}
		if len(years) > 0 {
			repo.bySchoolYear[state] = years
		}
	}

	return repo
}

// ForAge returns the requirements for the nearest configured age at or below
// the requested age. A five-year-old is held to the age-5 set even when the
// state only configures ages 4 and 7. No configured age at or below the
// requested one yields an empty list, which the engine reports as
// UNDETERMINED.
func (r *Repository) ForAge(state string, age int) []validation.CompiledRequirement {
	ages, ok := r.byAge[state]
	if !ok {
		return nil
	}
	best := -1
	for configured := range ages {
		if configured <= age && configured > best {
			best = configured
		}
	}
	if best < 0 {
		return nil
	}
	return ages[best]
}

// ForSchoolYear returns the requirements for an exact school-year key, or an
// empty list when the state or key is unknown.
func (r *Repository) ForSchoolYear(state, schoolYear string) []validation.CompiledRequirement {
	years, ok := r.bySchoolYear[state]
	if !ok {
		return nil
	}
	return years[schoolYear]
}

// HasState reports whether any requirements exist for a state.
func (r *Repository) HasState(state string) bool {
	_, byAge := r.byAge[state]
	_, byYear := r.bySchoolYear[state]
	return byAge || byYear
}

// States lists the configured state codes, sorted.
func (r *Repository) States() []string {
	seen := make(map[string]struct{})
	for s := range r.byAge {
		seen[s] = struct{}{}
	}
	for s := range r.bySchoolYear {
		seen[s] = struct{}{}
	}
	states := make([]string, 0, len(seen))
	for s := range seen {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// Requirements returns everything configured for one state, for the
// inspection endpoints. Age groups come back sorted by age.
func (r *Repository) Requirements(state string) (map[int][]models.Requirement, map[string][]models.Requirement, bool) {
	if !r.HasState(state) {
		return nil, nil, false
	}
	byAge := make(map[int][]models.Requirement)
	for age, reqs := range r.byAge[state] {
		for _, cr := range reqs {
			byAge[age] = append(byAge[age], cr.Requirement)
		}
	}
	byYear := make(map[string][]models.Requirement)
	for year, reqs := range r.bySchoolYear[state] {
		for _, cr := range reqs {
			byYear[year] = append(byYear[year], cr.Requirement)
		}
	}
	return byAge, byYear, true
}
