package wellness

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	// ListByMetric returns the patient's entries for metric, oldest first.
	ListByMetric(ctx context.Context, patientID uuid.UUID, metric string) ([]*Entry, error)
}
