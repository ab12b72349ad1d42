package casenotes

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *CaseNote) error
	GetByID(ctx context.Context, id uuid.UUID) (*CaseNote, error)
	// List returns notes newest first. An empty email matches every patient.
	List(ctx context.Context, patientEmail string) ([]*CaseNote, error)
	// Modify loads the note, applies fn and stores the result atomically.
	Modify(ctx context.Context, id uuid.UUID, fn func(n *CaseNote) error) (*CaseNote, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
