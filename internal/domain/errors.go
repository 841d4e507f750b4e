package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExternalAPI marks a weather or AI upstream that answered badly or not at all.
	ErrExternalAPI = errors.New("external api error")

	// ErrConfigMissing marks a provider that cannot run because credentials are absent.
	ErrConfigMissing = errors.New("configuration missing")

	// ErrInvalidProfile is returned by PatientProfile.Validate for out-of-range inputs.
	ErrInvalidProfile = errors.New("invalid patient profile")

	// ErrPatientNotFound is returned by patient repositories for unknown IDs.
	ErrPatientNotFound = errors.New("patient not found")
)

// FetchKind classifies how a weather tier failed.
type FetchKind string

const (
	FetchTransport FetchKind = "transport" // timeout, DNS, connection reset
	FetchStatus    FetchKind = "status"    // non-2xx response
	FetchDecode    FetchKind = "decode"    // body was not the expected JSON
)

// FetchError is the failure half of a weather tier result. It always matches
// ErrExternalAPI under errors.Is.
type FetchError struct {
	Tier       string
	Kind       FetchKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchStatus {
		return fmt.Sprintf("%s weather tier: status %d", e.Tier, e.StatusCode)
	}
	return fmt.Sprintf("%s weather tier: %s: %v", e.Tier, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets callers test any tier failure against ErrExternalAPI.
func (e *FetchError) Is(target error) bool { return target == ErrExternalAPI }
