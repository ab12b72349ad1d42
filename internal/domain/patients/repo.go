package patients

import "context"

type Repository interface {
	Create(ctx context.Context, rec *PatientRecord) error
	Get(ctx context.Context, email string) (*PatientRecord, error)
	// List matches search against name, email and phone. Empty search
	// returns every record, ordered by name.
	List(ctx context.Context, search string) ([]*PatientRecord, error)
	// Modify loads the record, applies fn and stores the result atomically.
	Modify(ctx context.Context, email string, fn func(rec *PatientRecord) error) (*PatientRecord, error)
}
