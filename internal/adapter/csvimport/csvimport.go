// Package csvimport reads patient spreadsheets and writes assessment reports.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/jszwec/csvutil"
)

// Columns that must be present in the header row.
var requiredColumns = []string{"Name", "Age", "ZIP Code"}

// patientRow mirrors the spreadsheet columns. Numeric columns are decoded as
// text so blank cells and bad values can be reported per line.
type patientRow struct {
	Name                   string `csv:"Name"`
	Age                    string `csv:"Age"`
	PregnancyICD10         string `csv:"Pregnancy ICD-10"`
	PregnancyDescription   string `csv:"Pregnancy Description"`
	ComorbidityICD10       string `csv:"Comorbidity ICD-10"`
	ComorbidityDescription string `csv:"Comorbidity Description"`
	WeeksPregnant          string `csv:"Weeks Pregnant"`
	Address                string `csv:"Address"`
	ZipCode                string `csv:"ZIP Code"`
	PhoneNumber            string `csv:"Phone Number"`
	Email                  string `csv:"Email"`
	Medications            string `csv:"Medications"`
	MedicationNotes        string `csv:"Medication Notes"`
	NDCCodes               string `csv:"NDC Codes"`
	Between17And35         string `csv:"Between 17-35"`
}

// RowError reports a rejected data row by its line in the file.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Result holds the accepted patients and the rejected rows.
type Result struct {
	Patients []domain.Patient
	Rejected []*RowError
}

// Decode reads a patient CSV. Header and read failures abort the import;
// invalid rows are collected in Result.Rejected and skipped.
func Decode(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, errors.New("csv is empty")
		}
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	if missing := missingColumns(dec.Header()); len(missing) > 0 {
		return Result{}, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	res := Result{Patients: []domain.Patient{}}
	for {
		var row patientRow
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return res, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if err != nil {
			res.Rejected = append(res.Rejected, &RowError{Line: line, Err: err})
			continue
		}

		p, err := row.toPatient()
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			res.Rejected = append(res.Rejected, &RowError{Line: line, Err: err})
			continue
		}
		res.Patients = append(res.Patients, p)
	}
	return res, nil
}

func (r patientRow) toPatient() (domain.Patient, error) {
	age, err := parseInt("Age", r.Age, true)
	if err != nil {
		return domain.Patient{}, err
	}
	weeks, err := parseInt("Weeks Pregnant", r.WeeksPregnant, false)
	if err != nil {
		return domain.Patient{}, err
	}
	band, err := parseFlag(r.Between17And35)
	if err != nil {
		return domain.Patient{}, err
	}
	return domain.Patient{
		Name:                   strings.TrimSpace(r.Name),
		Age:                    age,
		PregnancyICD10:         strings.TrimSpace(r.PregnancyICD10),
		PregnancyDescription:   strings.TrimSpace(r.PregnancyDescription),
		ComorbidityICD10:       strings.TrimSpace(r.ComorbidityICD10),
		ComorbidityDescription: strings.TrimSpace(r.ComorbidityDescription),
		WeeksPregnant:          weeks,
		Address:                strings.TrimSpace(r.Address),
		ZipCode:                strings.TrimSpace(r.ZipCode),
		PhoneNumber:            strings.TrimSpace(r.PhoneNumber),
		Email:                  strings.TrimSpace(r.Email),
		Medications:            strings.TrimSpace(r.Medications),
		MedicationNotes:        strings.TrimSpace(r.MedicationNotes),
		NDCCodes:               strings.TrimSpace(r.NDCCodes),
		Between17And35:         band,
	}.WithDescriptions(), nil
}

func parseInt(column, s string, required bool) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			return 0, fmt.Errorf("%w: %s is required", domain.ErrInvalidProfile, column)
		}
		return 0, nil
	}
	// Spreadsheets often export whole numbers as "28.0".
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f), nil
	}
	return 0, fmt.Errorf("%w: %s %q is not a whole number", domain.ErrInvalidProfile, column, s)
}

// parseFlag reads the age band column. Blank cells leave the flag unset.
func parseFlag(s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "1", "true", "yes", "y", "1.0":
		v := true
		return &v, nil
	case "0", "false", "no", "n", "0.0":
		v := false
		return &v, nil
	default:
		return nil, fmt.Errorf("%w: Between 17-35 %q is not a boolean", domain.ErrInvalidProfile, s)
	}
}

func missingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}
