package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Service struct {
	histories Repository
}

func NewService(histories Repository) *Service {
	return &Service{histories: histories}
}

func (s *Service) GetForPatient(ctx context.Context, patientID uuid.UUID) (*PatientHistory, error) {
	return s.histories.GetByPatient(ctx, patientID)
}

// GetOrCreate returns the patient's history record, creating an empty one if
// this is the first time the patient's documents are processed.
func (s *Service) GetOrCreate(ctx context.Context, patientID uuid.UUID) (*PatientHistory, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	h, err := s.histories.GetByPatient(ctx, patientID)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	h = NewPatientHistory(patientID)
	if err := s.histories.Create(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Save persists the accumulated history after a merge.
func (s *Service) Save(ctx context.Context, h *PatientHistory) error {
	if h.ID == uuid.Nil {
		return fmt.Errorf("history record has no id")
	}
	return s.histories.Update(ctx, h)
}
