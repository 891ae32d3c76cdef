package rules

import "github.com/savegress/vaxguard/pkg/models"

// DefaultFile is the built-in requirement set used when no requirements file
// is configured. It covers the Massachusetts school-entry schedule and
// exists so the service is usable out of the box; deployments override it
// with their own YAML.
func DefaultFile() File {
	exemptions := []models.ExemptionType{
		models.ExemptionMedicalContraindication,
		models.ExemptionLaboratoryEvidence,
		models.ExemptionReliableHistory,
		models.ExemptionReligious,
	}

	kindergarten := []models.Requirement{
		{
			VaccineCode:        "DTaP",
			MinDoses:           5,
			Description:        "5 doses DTaP; 4 doses acceptable if 4th given on or after 4th birthday",
			AcceptedExemptions: exemptions,
			Alternates: []models.AlternateRequirement{
				{
					MinDoses:       4,
					Description:    "4 doses with 4th dose on or after 4th birthday",
					DateConditions: []string{"4th dose on or after 4th birthday"},
				},
			},
		},
		{
			VaccineCode:        "Polio",
			MinDoses:           4,
			Description:        "4 doses Polio with final dose spacing",
			DateConditions:     []string{"4th dose on or after 4th birthday"},
			IntervalConditions: []string{"at least 6 months between 3rd and 4th dose"},
			AcceptedExemptions: exemptions,
			Alternates: []models.AlternateRequirement{
				{
					MinDoses:       3,
					Description:    "3 doses with 3rd dose on or after 4th birthday",
					DateConditions: []string{"3rd dose on or after 4th birthday"},
				},
			},
		},
		{
			VaccineCode:        "MMR",
			MinDoses:           2,
			Description:        "2 doses MMR, first on or after 1st birthday",
			DateConditions:     []string{"1st dose on or after 1st birthday"},
			IntervalConditions: []string{"at least 28 days between doses"},
			AcceptedExemptions: exemptions,
		},
		{
			VaccineCode:        "HepB",
			MinDoses:           3,
			Description:        "3 doses Hepatitis B",
			AcceptedExemptions: exemptions,
		},
		{
			VaccineCode:        "Varicella",
			MinDoses:           2,
			Description:        "2 doses Varicella, first on or after 1st birthday",
			DateConditions:     []string{"1st dose on or after 1st birthday"},
			IntervalConditions: []string{"at least 28 days between doses"},
			AcceptedExemptions: exemptions,
		},
	}

	grade7 := []models.Requirement{
		{
			VaccineCode:        "Tdap",
			MinDoses:           1,
			Description:        "1 dose Tdap booster",
			AcceptedExemptions: exemptions,
		},
		{
			VaccineCode:        "MenACWY",
			MinDoses:           1,
			Description:        "1 dose MenACWY",
			AcceptedExemptions: exemptions,
		},
	}

	grade11 := []models.Requirement{
		{
			VaccineCode:        "MenACWY",
			MinDoses:           2,
			Description:        "2 doses MenACWY with booster spacing",
			IntervalConditions: []string{"at least 8 weeks between 1st and 2nd dose"},
			AcceptedExemptions: exemptions,
		},
	}

	ageEntries := func(age int, reqs []models.Requirement) []AgeRequirement {
		entries := make([]AgeRequirement, 0, len(reqs))
		for _, r := range reqs {
			entries = append(entries, AgeRequirement{Age: age, Requirement: r})
		}
		return entries
	}
	yearEntries := func(year string, reqs []models.Requirement) []SchoolYearRequirement {
		entries := make([]SchoolYearRequirement, 0, len(reqs))
		for _, r := range reqs {
			entries = append(entries, SchoolYearRequirement{SchoolYear: year, Requirement: r})
		}
		return entries
	}

	return File{
		States: map[string]StateConfig{
			"MA": {
				Age: append(append(
					ageEntries(5, kindergarten),
					ageEntries(12, grade7)...),
					ageEntries(16, grade11)...),
				SchoolYear: append(append(
					yearEntries("kindergarten", kindergarten),
					yearEntries("grade7", grade7)...),
					yearEntries("grade11", grade11)...),
			},
		},
	}
}
