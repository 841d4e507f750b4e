package domain

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"strconv"
)

// topItems bounds the ranked medication and condition lists.
const topItems = 10

// RosterFilter narrows a roster. Empty fields match everything.
type RosterFilter struct {
	RiskLevel Level
	Location  string
}

// RosterEntry is one assessed patient in a population view.
type RosterEntry struct {
	PatientID              int64          `json:"patient_id"`
	Name                   string         `json:"name"`
	Age                    int            `json:"age"`
	ZipCode                string         `json:"zip_code"`
	PhoneNumber            string         `json:"phone_number"`
	Email                  string         `json:"email"`
	Address                string         `json:"address"`
	PregnancyWeeks         int            `json:"pregnancy_weeks"`
	PregnancyICD10         string         `json:"pregnancy_icd10"`
	PregnancyDescription   string         `json:"pregnancy_description"`
	ComorbidityICD10       string         `json:"comorbidity_icd10"`
	ComorbidityDescription string         `json:"comorbidity_description"`
	Medications            []string       `json:"medications"`
	Conditions             []string       `json:"conditions"`
	Assessment             RiskAssessment `json:"assessment"`
	AISuggestions          *AISuggestions `json:"ai_suggestions,omitempty"`
}

// RiskRoster assesses each patient that passes the filter. The location filter
// is applied before assessment so filtered patients cost no weather lookup.
func RiskRoster(ctx context.Context, patients []Patient, filter RosterFilter, provider WeatherProvider, logger *slog.Logger) []RosterEntry {
	entries := []RosterEntry{}
	for _, p := range patients {
		if filter.Location != "" && p.ZipCode != filter.Location {
			continue
		}
		a := AssessRisk(ctx, p.Profile(), provider, logger)
		if filter.RiskLevel != "" && a.RiskLevel != filter.RiskLevel {
			continue
		}
		entries = append(entries, NewRosterEntry(p, a))
	}
	return entries
}

// NewRosterEntry pairs a patient with its assessment.
func NewRosterEntry(p Patient, a RiskAssessment) RosterEntry {
	return RosterEntry{
		PatientID:              p.ID,
		Name:                   p.Name,
		Age:                    p.Age,
		ZipCode:                p.ZipCode,
		PhoneNumber:            p.PhoneNumber,
		Email:                  p.Email,
		Address:                p.Address,
		PregnancyWeeks:         p.WeeksPregnant,
		PregnancyICD10:         p.PregnancyICD10,
		PregnancyDescription:   p.PregnancyDescription,
		ComorbidityICD10:       p.ComorbidityICD10,
		ComorbidityDescription: p.ComorbidityDescription,
		Medications:            nonNil(p.MedicationList()),
		Conditions:             nonNil(p.Conditions()),
		Assessment:             a,
	}
}

// LevelCounts counts assessments per tier.
type LevelCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// LevelPercentages is LevelCounts as a share of the total, one decimal.
type LevelPercentages struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// AgeGroups buckets patients by age.
type AgeGroups struct {
	Under21    int `json:"under_21"`
	From21To30 int `json:"21_30"`
	From31To35 int `json:"31_35"`
	Over35     int `json:"over_35"`
}

// AgeGroupPercentages is AgeGroups as a share of the total.
type AgeGroupPercentages struct {
	Under21    float64 `json:"under_21"`
	From21To30 float64 `json:"21_30"`
	From31To35 float64 `json:"31_35"`
	Over35     float64 `json:"over_35"`
}

// TrimesterCounts buckets patients by trimester.
type TrimesterCounts struct {
	First   int `json:"1"`
	Second  int `json:"2"`
	Third   int `json:"3"`
	Unknown int `json:"unknown"`
}

// TrimesterPercentages is TrimesterCounts as a share of the total.
type TrimesterPercentages struct {
	First   float64 `json:"1"`
	Second  float64 `json:"2"`
	Third   float64 `json:"3"`
	Unknown float64 `json:"unknown"`
}

// ItemRisk counts the patients taking a medication or carrying a condition,
// split by their risk tier.
type ItemRisk struct {
	Count      int         `json:"count"`
	RiskLevels LevelCounts `json:"risk_levels"`
}

// RankedItem is one entry of a top-medications or top-conditions list.
type RankedItem struct {
	Name string `json:"name"`
	ItemRisk
}

// Summary aggregates a population of assessments. The medication and
// condition fields are only filled by SummarizeDetailed.
type Summary struct {
	TotalPatients             int                  `json:"total_patients"`
	RiskDistribution          LevelCounts          `json:"risk_distribution"`
	RiskPercentages           LevelPercentages     `json:"risk_percentages"`
	PatientsAtRisk            int                  `json:"patients_at_risk"`
	PatientsAtRiskPercentage  float64              `json:"patients_at_risk_percentage"`
	ExtremeHeatRisk           int                  `json:"extreme_heat_risk"`
	ExtremeHeatRiskPercentage float64              `json:"extreme_heat_risk_percentage"`
	AverageRiskScore          float64              `json:"average_risk_score"`
	AgeGroups                 AgeGroups            `json:"age_groups"`
	AgePercentages            AgeGroupPercentages  `json:"age_percentages"`
	TrimesterDistribution     TrimesterCounts      `json:"trimester_distribution"`
	TrimesterPercentages      TrimesterPercentages `json:"trimester_percentages"`

	MedicationRisks map[string]ItemRisk `json:"medication_risks,omitempty"`
	ConditionRisks  map[string]ItemRisk `json:"condition_risks,omitempty"`
	TopMedications  []RankedItem        `json:"top_medications,omitempty"`
	TopConditions   []RankedItem        `json:"top_conditions,omitempty"`
}

// Summarize computes population statistics over roster entries.
func Summarize(entries []RosterEntry) Summary {
	var s Summary
	s.TotalPatients = len(entries)
	if s.TotalPatients == 0 {
		return s
	}

	var total float64
	for _, e := range entries {
		a := e.Assessment
		total += a.RiskScore

		switch a.RiskLevel {
		case LevelHigh:
			s.RiskDistribution.High++
		case LevelMedium:
			s.RiskDistribution.Medium++
		default:
			s.RiskDistribution.Low++
		}
		if a.RiskLevel == LevelMedium || a.RiskLevel == LevelHigh {
			s.PatientsAtRisk++
		}
		if a.HeatWaveRisk {
			s.ExtremeHeatRisk++
		}

		switch {
		case e.Age < 21:
			s.AgeGroups.Under21++
		case e.Age <= 30:
			s.AgeGroups.From21To30++
		case e.Age <= 35:
			s.AgeGroups.From31To35++
		default:
			s.AgeGroups.Over35++
		}

		switch Trimester(e.PregnancyWeeks) {
		case 1:
			s.TrimesterDistribution.First++
		case 2:
			s.TrimesterDistribution.Second++
		case 3:
			s.TrimesterDistribution.Third++
		default:
			s.TrimesterDistribution.Unknown++
		}
	}

	pct := func(count int) float64 {
		return round(float64(count)/float64(s.TotalPatients)*100, 1)
	}
	s.AverageRiskScore = round(total/float64(s.TotalPatients), 2)
	s.RiskPercentages = LevelPercentages{
		Low:    pct(s.RiskDistribution.Low),
		Medium: pct(s.RiskDistribution.Medium),
		High:   pct(s.RiskDistribution.High),
	}
	s.PatientsAtRiskPercentage = pct(s.PatientsAtRisk)
	s.ExtremeHeatRiskPercentage = pct(s.ExtremeHeatRisk)
	s.AgePercentages = AgeGroupPercentages{
		Under21:    pct(s.AgeGroups.Under21),
		From21To30: pct(s.AgeGroups.From21To30),
		From31To35: pct(s.AgeGroups.From31To35),
		Over35:     pct(s.AgeGroups.Over35),
	}
	s.TrimesterPercentages = TrimesterPercentages{
		First:   pct(s.TrimesterDistribution.First),
		Second:  pct(s.TrimesterDistribution.Second),
		Third:   pct(s.TrimesterDistribution.Third),
		Unknown: pct(s.TrimesterDistribution.Unknown),
	}
	return s
}

// SummarizeDetailed is Summarize plus per-medication and per-condition risk
// splits and their ten most common entries.
func SummarizeDetailed(entries []RosterEntry) Summary {
	s := Summarize(entries)
	s.MedicationRisks = map[string]ItemRisk{}
	s.ConditionRisks = map[string]ItemRisk{}
	for _, e := range entries {
		for _, med := range e.Medications {
			s.MedicationRisks[med] = s.MedicationRisks[med].add(e.Assessment.RiskLevel)
		}
		for _, cond := range e.Conditions {
			s.ConditionRisks[cond] = s.ConditionRisks[cond].add(e.Assessment.RiskLevel)
		}
	}
	s.TopMedications = rankItems(s.MedicationRisks)
	s.TopConditions = rankItems(s.ConditionRisks)
	return s
}

func (r ItemRisk) add(level Level) ItemRisk {
	r.Count++
	switch level {
	case LevelHigh:
		r.RiskLevels.High++
	case LevelMedium:
		r.RiskLevels.Medium++
	default:
		r.RiskLevels.Low++
	}
	return r
}

// rankItems orders items by count, most common first, ties by name.
func rankItems(items map[string]ItemRisk) []RankedItem {
	ranked := make([]RankedItem, 0, len(items))
	for name, r := range items {
		ranked = append(ranked, RankedItem{Name: name, ItemRisk: r})
	}
	slices.SortFunc(ranked, func(a, b RankedItem) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(ranked) > topItems {
		ranked = ranked[:topItems]
	}
	return ranked
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// TrimesterLabel renders a trimester for display, "unknown" for 0.
func TrimesterLabel(t int) string {
	if t == 0 {
		return "unknown"
	}
	return strconv.Itoa(t)
}
