package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/savegress/vaxguard/internal/validation"
	"github.com/savegress/vaxguard/pkg/models"
)

func testRepo() *Repository {
	return NewRepository(File{
		States: map[string]StateConfig{
			"MA": {
				Age: []AgeRequirement{
					{Age: 4, Requirement: models.Requirement{VaccineCode: "DTaP", MinDoses: 4}},
					{Age: 7, Requirement: models.Requirement{VaccineCode: "DTaP", MinDoses: 5}},
					{Age: 7, Requirement: models.Requirement{VaccineCode: "Tdap", MinDoses: 1}},
				},
				SchoolYear: []SchoolYearRequirement{
					{SchoolYear: "kindergarten", Requirement: models.Requirement{VaccineCode: "MMR", MinDoses: 2}},
				},
			},
			"NY": {
				SchoolYear: []SchoolYearRequirement{
					{SchoolYear: "kindergarten", Requirement: models.Requirement{VaccineCode: "Polio", MinDoses: 4}},
				},
			},
		},
	})
}

func TestForAge_FloorMatch(t *testing.T) {
	repo := testRepo()

	tests := []struct {
		age       int
		wantCount int
		wantCode  string
	}{
		{3, 0, ""},   // below every configured age
		{4, 1, "DTaP"},
		{5, 1, "DTaP"}, // falls back to the age-4 set
		{7, 2, "DTaP"},
		{12, 2, "DTaP"}, // falls back to the age-7 set
	}
	for _, tt := range tests {
		got := repo.ForAge("MA", tt.age)
		if len(got) != tt.wantCount {
			t.Errorf("ForAge(MA, %d): %d requirements, want %d", tt.age, len(got), tt.wantCount)
			continue
		}
		if tt.wantCount > 0 && got[0].VaccineCode != tt.wantCode {
			t.Errorf("ForAge(MA, %d): first code %q, want %q", tt.age, got[0].VaccineCode, tt.wantCode)
		}
	}

	if got := repo.ForAge("TX", 5); got != nil {
		t.Errorf("unknown state should yield nil, got %d requirements", len(got))
	}
	if got := repo.ForAge("NY", 5); got != nil {
		t.Errorf("state with no age entries should yield nil, got %d requirements", len(got))
	}
}

func TestForSchoolYear_ExactMatch(t *testing.T) {
	repo := testRepo()

	if got := repo.ForSchoolYear("MA", "kindergarten"); len(got) != 1 || got[0].VaccineCode != "MMR" {
		t.Errorf("ForSchoolYear(MA, kindergarten) = %+v, want one MMR requirement", got)
	}
	if got := repo.ForSchoolYear("MA", "grade7"); got != nil {
		t.Errorf("unknown school year should yield nil, got %d requirements", len(got))
	}
	if got := repo.ForSchoolYear("TX", "kindergarten"); got != nil {
		t.Errorf("unknown state should yield nil, got %d requirements", len(got))
	}
}

func TestHasStateAndStates(t *testing.T) {
	repo := testRepo()

	if !repo.HasState("MA") || !repo.HasState("NY") {
		t.Error("configured states should be reported")
	}
	if repo.HasState("TX") {
		t.Error("unconfigured state should not be reported")
	}

	got := repo.States()
	want := []string{"MA", "NY"}
	if len(got) != len(want) {
		t.Fatalf("States() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("States() = %v, want %v", got, want)
		}
	}
}

func TestRequirements_Inspection(t *testing.T) {
	repo := testRepo()

	byAge, byYear, ok := repo.Requirements("MA")
	if !ok {
		t.Fatal("MA should be present")
	}
	if len(byAge[7]) != 2 {
		t.Errorf("age 7 has %d requirements, want 2", len(byAge[7]))
	}
	if len(byYear["kindergarten"]) != 1 {
		t.Errorf("kindergarten has %d requirements, want 1", len(byYear["kindergarten"]))
	}

	if _, _, ok := repo.Requirements("TX"); ok {
		t.Error("unknown state should report not found")
	}
}

func TestLoad_YAML(t *testing.T) {
	doc := `
states:
  MA:
    schoolYear:
      - schoolYear: kindergarten
        vaccineCode: MMR
        minDoses: 2
        description: 2 doses MMR
        dateConditions:
          - 1st dose on or after 1st birthday
        intervalConditions:
          - at least 28 days between doses
        alternates:
          - minDoses: 1
            description: single dose with serologic evidence
`
	path := filepath.Join(t.TempDir(), "requirements.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	repo, err := Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	reqs := repo.ForSchoolYear("MA", "kindergarten")
	if len(reqs) != 1 {
		t.Fatalf("expected one requirement, got %d", len(reqs))
	}
	r := reqs[0]
	if r.VaccineCode != "MMR" || r.MinDoses != 2 {
		t.Errorf("requirement = %s/%d, want MMR/2", r.VaccineCode, r.MinDoses)
	}
	if len(r.DateConds) != 1 || r.DateConds[0].Kind != validation.CondBirthday {
		t.Errorf("date condition not compiled: %+v", r.DateConds)
	}
	if len(r.IntervalConds) != 1 || r.IntervalConds[0].Kind != validation.CondIntervalAll {
		t.Errorf("interval condition not compiled: %+v", r.IntervalConds)
	}
	if len(r.AltCompiled) != 1 || r.AltCompiled[0].MinDoses != 1 {
		t.Errorf("alternate not compiled: %+v", r.AltCompiled)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), zerolog.Nop()); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.yaml")
	if err := os.WriteFile(path, []byte("states: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, zerolog.Nop()); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestDefaultFile(t *testing.T) {
	repo := NewRepository(DefaultFile())

	if !repo.HasState("MA") {
		t.Fatal("default file should configure MA")
	}

	kindergarten := repo.ForSchoolYear("MA", "kindergarten")
	if len(kindergarten) != 5 {
		t.Errorf("kindergarten has %d requirements, want 5", len(kindergarten))
	}
	for _, r := range kindergarten {
		for _, c := range append(append([]validation.Condition{}, r.DateConds...), r.IntervalConds...) {
			if c.Kind == validation.CondUnparsable {
				t.Errorf("%s: condition %q did not parse", r.VaccineCode, c.Raw)
			}
		}
		for _, alt := range r.AltCompiled {
			for _, c := range append(append([]validation.Condition{}, alt.DateConds...), alt.IntervalConds...) {
				if c.Kind == validation.CondUnparsable {
					t.Errorf("%s alternate: condition %q did not parse", r.VaccineCode, c.Raw)
				}
			}
		}
	}

	// Age lookups floor-match onto the configured tiers.
	if got := repo.ForAge("MA", 6); len(got) != 5 {
		t.Errorf("age 6 has %d requirements, want the kindergarten set of 5", len(got))
	}
	if got := repo.ForAge("MA", 13); len(got) != 2 {
		t.Errorf("age 13 has %d requirements, want the grade 7 set of 2", len(got))
	}
	if got := repo.ForAge("MA", 17); len(got) != 1 {
		t.Errorf("age 17 has %d requirements, want the grade 11 set of 1", len(got))
	}
}
