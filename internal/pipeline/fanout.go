package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
)

// FanOut loads every batch into each of its loaders in order and stops at the
// first failure.
type FanOut []BatchLoader

func (f FanOut) LoadBatch(ctx context.Context, events []domain.AssessmentEvent) error {
	for i, l := range f {
		if err := l.LoadBatch(ctx, events); err != nil {
			return fmt.Errorf("loader %d: %w", i, err)
		}
	}
	return nil
}

// HistoryLoader appends assessments of registered patients to the history
// store. Events without a patient id are skipped. Write failures are logged
// and never fail the batch: a failed batch is redelivered and would be
// published again by the loaders ahead of this one.
type HistoryLoader struct {
	store  domain.HistoryStore
	logger *slog.Logger
}

// NewHistoryLoader creates a BatchLoader backed by a history store.
func NewHistoryLoader(store domain.HistoryStore, logger *slog.Logger) *HistoryLoader {
	return &HistoryLoader{store: store, logger: logger}
}

func (h *HistoryLoader) LoadBatch(ctx context.Context, events []domain.AssessmentEvent) error {
	var errs []error
	for _, e := range events {
		if e.PatientID == 0 {
			continue
		}
		if _, err := h.store.SaveAssessment(ctx, domain.NewAssessmentRecord(e.PatientID, e.Assessment)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		h.logger.Warn("history write failed", "failed", len(errs), "batch_size", len(events), "error", errors.Join(errs...))
	}
	return nil
}
