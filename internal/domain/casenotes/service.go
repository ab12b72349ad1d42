package casenotes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayursutra/portal/internal/domain/identity"
	"github.com/ayursutra/portal/internal/platform/blobstore"
)

type Service struct {
	repo   Repository
	blobs  blobstore.BlobStore
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, blobs blobstore.BlobStore, logger zerolog.Logger) *Service {
	return &Service{repo: repo, blobs: blobs, logger: logger, now: time.Now}
}

func (s *Service) Create(ctx context.Context, practitionerID uuid.UUID, req CreateRequest) (*CaseNote, error) {
	email := identity.NormalizeEmail(req.PatientEmail)
	if email == "" {
		return nil, ErrEmailRequired
	}
	now := s.now().UTC()
	n := &CaseNote{
		ID:             uuid.New(),
		PatientEmail:   email,
		PractitionerID: practitionerID,
		Subjective:     strings.TrimSpace(req.Subjective),
		Objective:      strings.TrimSpace(req.Objective),
		Assessment:     strings.TrimSpace(req.Assessment),
		Plan:           strings.TrimSpace(req.Plan),
		Attachments:    []Attachment{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if n.Empty() {
		return nil, ErrEmptyNote
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create case note: %w", err)
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*CaseNote, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, patientEmail string) ([]*CaseNote, error) {
	out, err := s.repo.List(ctx, identity.NormalizeEmail(patientEmail))
	if err != nil {
		return nil, fmt.Errorf("list case notes: %w", err)
	}
	if out == nil {
		out = []*CaseNote{}
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*CaseNote, error) {
	return s.repo.Modify(ctx, id, func(n *CaseNote) error {
		for _, f := range []struct {
			src *string
			dst *string
		}{
			{req.Subjective, &n.Subjective},
			{req.Objective, &n.Objective},
			{req.Assessment, &n.Assessment},
			{req.Plan, &n.Plan},
		} {
			if f.src != nil {
				*f.dst = strings.TrimSpace(*f.src)
			}
		}
		if n.Empty() {
			return ErrEmptyNote
		}
		n.UpdatedAt = s.now().UTC()
		return nil
	})
}

// Delete removes the note, then its attachments. Blob cleanup failures are
// logged only.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	for _, a := range n.Attachments {
		s.deleteBlob(ctx, a.BlobID)
	}
	return nil
}

func (s *Service) deleteBlob(ctx context.Context, blobID string) {
	if err := s.blobs.Delete(ctx, blobID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Warn().Err(err).Str("blob_id", blobID).Msg("orphaned case attachment")
	}
}

// AddAttachment stores the file, then appends it to the note. The blob is
// removed again if the note cannot be updated.
func (s *Service) AddAttachment(ctx context.Context, actorID, id uuid.UUID, fileName, contentType string, content io.Reader) (*CaseNote, error) {
	if !blobstore.AttachmentContentTypes[contentType] {
		return nil, blobstore.ErrInvalidContentType
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	meta, err := s.blobs.Upload(ctx, blobstore.BlobMetadata{
		FileName:    fileName,
		ContentType: contentType,
		OwnerID:     id.String(),
		Category:    blobstore.CategoryCaseAttachment,
		CreatedBy:   actorID.String(),
	}, content)
	if err != nil {
		return nil, err
	}

	n, err := s.repo.Modify(ctx, id, func(n *CaseNote) error {
		n.Attachments = append(n.Attachments, Attachment{
			BlobID:      meta.ID,
			FileName:    meta.FileName,
			ContentType: meta.ContentType,
			Size:        meta.Size,
		})
		n.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		s.deleteBlob(ctx, meta.ID)
		return nil, err
	}
	return n, nil
}

func (s *Service) RemoveAttachment(ctx context.Context, id uuid.UUID, blobID string) (*CaseNote, error) {
	n, err := s.repo.Modify(ctx, id, func(n *CaseNote) error {
		idx := -1
		for i, a := range n.Attachments {
			if a.BlobID == blobID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrAttachmentNotFound
		}
		n.Attachments = append(n.Attachments[:idx:idx], n.Attachments[idx+1:]...)
		n.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.deleteBlob(ctx, blobID)
	return n, nil
}
