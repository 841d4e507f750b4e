// Package domain scores weather-amplified obstetric risk for pregnant patients.
//
// # Inputs
//
// A [PatientProfile] carries age, gestational weeks, diagnosis codes,
// medications, a zip code and an optional optimal-age flag. Diagnoses arrive
// either as the structured pregnancy/comorbidity pair or as a legacy flat list;
// [NormalizeConditions] folds both into a [ConditionSet] using the ICD-10
// convention that pregnancy codes start with "O".
//
// A [WeatherSnapshot] comes from a [WeatherProvider] keyed by zip code.
//
// # Heat index
//
// [HeatIndex] applies the Rothfusz regression used by the US National Weather
// Service. It works in Fahrenheit internally:
//
//	HI = -42.379 + 2.04901523·T + 10.14333127·H - 0.22475541·T·H
//	     - 6.83783e-3·T² - 5.481717e-2·H² + 1.22874e-3·T²·H
//	     + 8.5282e-4·T·H² - 1.99e-6·T²·H²
//
// A heat wave is a temperature above 35°C or a heat index above 40°C.
//
// # Factors
//
//	Age:         17-20, 31-35 → 2 high | 21-30 → 1 medium | else 0 low
//	Trimester:   3rd → 2 high | 1st → 1 medium | 2nd or unknown → 0 low
//	Location:    additive weather sub-scores, ≥4 high | ≥2 medium
//	Conditions:  table lookups, ≥6 high | ≥3 medium
//	Medications: substring table lookups, ≥4 high | ≥2 medium
//	Age band:    in band → 0 low | out of band → 2 high | absent → omitted
//
// The total is classified ≤3 low, ≤5 medium, otherwise high.
//
// # Degradation
//
// [AssessRisk] never fails. If the weather provider returns an error the
// location factor scores 1 (medium), the heat-wave flag is false and the
// assessment carries [DefaultSnapshot]. [BuildComprehensiveAssessment] falls
// back to the basic assessment with an error marker when the extra analysis
// cannot be built. [SuggestFor] falls back to [FallbackRecommendations] when
// the AI recommender is unavailable.
package domain
