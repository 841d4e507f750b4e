package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/couchcryptid/maternal-heat-risk/internal/adapter/csvimport"
	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

type rejectedRow struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type importResponse struct {
	Imported int              `json:"imported"`
	Patients []domain.Patient `json:"patients"`
	Rejected []rejectedRow    `json:"rejected"`
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	p, err := decodePatient(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.svc.Patients.CreatePatient(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := s.svc.Patients.ListPatients(r.Context(), r.URL.Query().Get("zip"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, patients)
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.Patients.GetPatient(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := decodePatient(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p.ID = id
	updated, err := s.svc.Patients.UpdatePatient(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Patients.DeletePatient(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportPatients registers every valid row of a CSV upload. Rejected
// rows are reported by line and do not fail the request.
func (s *Server) handleImportPatients(w http.ResponseWriter, r *http.Request) {
	res, err := csvimport.Decode(http.MaxBytesReader(w, r.Body, maxCSVBody))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	out := importResponse{
		Patients: make([]domain.Patient, 0, len(res.Patients)),
		Rejected: make([]rejectedRow, 0, len(res.Rejected)),
	}
	for _, p := range res.Patients {
		created, err := s.svc.Patients.CreatePatient(r.Context(), p)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out.Patients = append(out.Patients, created)
	}
	for _, re := range res.Rejected {
		out.Rejected = append(out.Rejected, rejectedRow{Line: re.Line, Error: re.Err.Error()})
	}
	out.Imported = len(out.Patients)

	s.logger.Info("patients imported", "imported", out.Imported, "rejected", len(out.Rejected))
	sharedobs.WriteJSON(w, http.StatusCreated, out)
}

func decodePatient(w http.ResponseWriter, r *http.Request) (domain.Patient, error) {
	var p domain.Patient
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&p); err != nil {
		return domain.Patient{}, fmt.Errorf("%w: decode patient: %w", errBadRequest, err)
	}
	if err := p.Validate(); err != nil {
		return domain.Patient{}, err
	}
	return p.WithDescriptions(), nil
}
