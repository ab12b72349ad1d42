package practitioner

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ayursutra/portal/internal/platform/localstore"
)

const ProfilesKey = "practitioner_profiles_v1"

type repoLocal struct {
	profiles *localstore.Collection[storedProfile]
}

// storedProfile keeps the photo blob id, which Profile hides from JSON.
type storedProfile struct {
	Profile
	PhotoBlobID string `json:"photo_blob_id"`
}

func NewRepoLocal(s *localstore.Store) Repository {
	return &repoLocal{profiles: localstore.NewCollection[storedProfile](s, ProfilesKey)}
}

func (sp storedProfile) profile() *Profile {
	p := sp.Profile
	p.PhotoBlobID = sp.PhotoBlobID
	return &p
}

func (r *repoLocal) Get(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	sp, ok, err := r.profiles.Find(ctx, func(sp storedProfile) bool { return sp.AccountID == accountID })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return sp.profile(), nil
}

func (r *repoLocal) Upsert(ctx context.Context, p *Profile) error {
	next := storedProfile{Profile: *p, PhotoBlobID: p.PhotoBlobID}
	return r.profiles.Mutate(ctx, func(items []storedProfile) ([]storedProfile, error) {
		for i := range items {
			if items[i].AccountID == p.AccountID {
				items[i] = next
				return items, nil
			}
		}
		return append(items, next), nil
	})
}

func (r *repoLocal) List(ctx context.Context) ([]*Profile, error) {
	all, err := r.profiles.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Profile, 0, len(all))
	for _, sp := range all {
		out = append(out, sp.profile())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
