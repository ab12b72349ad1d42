package practitioner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayursutra/portal/internal/domain/identity"
	"github.com/ayursutra/portal/internal/platform/auth"
	"github.com/ayursutra/portal/internal/platform/blobstore"
)

// AccountDirectory is the part of identity the profiles are built from.
type AccountDirectory interface {
	Lookup(ctx context.Context, id uuid.UUID) (*identity.Account, error)
	ListDoctors(ctx context.Context) ([]*identity.Account, error)
}

// PhotoURLPrefix is where the blob download route serves photos from.
const PhotoURLPrefix = "/api/v1/blobs/"

type Service struct {
	repo     Repository
	accounts AccountDirectory
	blobs    blobstore.BlobStore
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, accounts AccountDirectory, blobs blobstore.BlobStore, logger zerolog.Logger) *Service {
	return &Service{repo: repo, accounts: accounts, blobs: blobs, logger: logger, now: time.Now}
}

func defaultProfile(a *identity.Account) *Profile {
	return &Profile{AccountID: a.ID, Name: a.Name, Email: a.Email, UpdatedAt: a.UpdatedAt}
}

// Get returns the stored profile, or one derived from the account when the
// doctor has not saved a profile yet.
func (s *Service) Get(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	acct, err := s.accounts.Lookup(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.Role != auth.RoleDoctor {
		return nil, ErrNotPractitioner
	}
	p, err := s.repo.Get(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return defaultProfile(acct), nil
	}
	return p, err
}

func (s *Service) Save(ctx context.Context, accountID uuid.UUID, req SaveRequest) (*Profile, error) {
	p, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		src *string
		dst *string
	}{
		{req.Name, &p.Name},
		{req.Phone, &p.Phone},
		{req.Specialization, &p.Specialization},
		{req.Hours, &p.Hours},
		{req.Bio, &p.Bio},
	} {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UploadPhoto stores a jpeg or png and points the profile at it. The
// previous photo is removed once the profile is saved.
func (s *Service) UploadPhoto(ctx context.Context, accountID uuid.UUID, fileName, contentType string, content io.Reader) (*Profile, error) {
	if !blobstore.ImageContentTypes[contentType] {
		return nil, blobstore.ErrInvalidContentType
	}
	p, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	meta, err := s.blobs.Upload(ctx, blobstore.BlobMetadata{
		FileName:    fileName,
		ContentType: contentType,
		OwnerID:     accountID.String(),
		Category:    blobstore.CategoryPractitionerPhoto,
		CreatedBy:   accountID.String(),
	}, content)
	if err != nil {
		return nil, err
	}

	previous := p.PhotoBlobID
	p.PhotoBlobID = meta.ID
	p.PhotoURL = PhotoURLPrefix + meta.ID
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Upsert(ctx, p); err != nil {
		_ = s.blobs.Delete(ctx, meta.ID)
		return nil, err
	}
	if previous != "" {
		if err := s.blobs.Delete(ctx, previous); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
			s.logger.Warn().Err(err).Str("blob_id", previous).Msg("old practitioner photo not removed")
		}
	}
	return p, nil
}

// List returns a profile for every doctor account, ordered by name.
func (s *Service) List(ctx context.Context) ([]*Profile, error) {
	doctors, err := s.accounts.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	byID := make(map[uuid.UUID]*Profile, len(stored))
	for _, p := range stored {
		byID[p.AccountID] = p
	}
	out := make([]*Profile, 0, len(doctors))
	for _, d := range doctors {
		if p, ok := byID[d.ID]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, defaultProfile(d))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
