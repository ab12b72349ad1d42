package identity

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ayursutra/portal/internal/platform/localstore"
)

// AccountsKey is the local-store key holding every account.
const AccountsKey = "accounts_v1"

// storedAccount keeps the password hash, which Account hides from JSON.
type storedAccount struct {
	Account
	PasswordHash string `json:"password_hash"`
}

func (s storedAccount) account() *Account {
	a := s.Account
	a.PasswordHash = s.PasswordHash
	return &a
}

type repoLocal struct {
	accounts *localstore.Collection[storedAccount]
}

func NewRepoLocal(s *localstore.Store) Repository {
	return &repoLocal{accounts: localstore.NewCollection[storedAccount](s, AccountsKey)}
}

func (r *repoLocal) Create(ctx context.Context, a *Account) error {
	return r.accounts.Mutate(ctx, func(items []storedAccount) ([]storedAccount, error) {
		for _, it := range items {
			if it.Email == a.Email {
				return nil, ErrEmailTaken
			}
		}
		return append(items, storedAccount{Account: *a, PasswordHash: a.PasswordHash}), nil
	})
}

func (r *repoLocal) find(ctx context.Context, pred func(storedAccount) bool) (*Account, error) {
	it, ok, err := r.accounts.Find(ctx, pred)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return it.account(), nil
}

func (r *repoLocal) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.find(ctx, func(s storedAccount) bool { return s.ID == id })
}

func (r *repoLocal) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.find(ctx, func(s storedAccount) bool { return s.Email == email })
}

func (r *repoLocal) Update(ctx context.Context, a *Account) error {
	return r.accounts.Mutate(ctx, func(items []storedAccount) ([]storedAccount, error) {
		for i := range items {
			if items[i].ID == a.ID {
				hash := items[i].PasswordHash
				items[i].Account = *a
				items[i].PasswordHash = hash
				return items, nil
			}
		}
		return nil, ErrNotFound
	})
}

func (r *repoLocal) ListByRole(ctx context.Context, role string) ([]*Account, error) {
	all, err := r.accounts.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Account
	for _, it := range all {
		if it.Role == role {
			out = append(out, it.account())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
