package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sakif/usuarios-api/internal/apperror"
	"github.com/sakif/usuarios-api/internal/clock"
	"github.com/sakif/usuarios-api/internal/model"
	"github.com/sakif/usuarios-api/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. It stores records,
// not pointers, so a caller mutating a returned *model.User does not change
// what is "in the database" until Save.
type fakeUserRepo struct {
	records map[string]model.Record
	clock   clock.Clock

	// set to a non-nil error to simulate a database failure
	findErr error
	saveErr error

	saves int
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo(clk clock.Clock) *fakeUserRepo {
	return &fakeUserRepo{records: make(map[string]model.Record), clock: clk}
}

func (f *fakeUserRepo) put(u *model.User) {
	f.records[u.UUID()] = u.Record()
}

func (f *fakeUserRepo) FindByUUID(_ context.Context, uuid string) (*model.User, error) {
	return f.findBy(uuid, func(r model.Record) bool { return r.UUID == uuid })
}

func (f *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return f.findBy(username, func(r model.Record) bool { return r.Username == username })
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return f.findBy(email, func(r model.Record) bool { return r.Email == email })
}

func (f *fakeUserRepo) findBy(key string, match func(model.Record) bool) (*model.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, r := range f.records {
		if match(r) {
			return model.ReconstituteUser(r, f.clock), nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeUserRepo) filtered(name string) []model.Record {
	var out []model.Record
	for _, r := range f.records {
		if name == "" || strings.Contains(strings.ToLower(r.FullName), strings.ToLower(name)) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeUserRepo) List(_ context.Context, opts repository.ListOptions) ([]*model.User, error) {
	recs := f.filtered(opts.Name)
	if opts.Offset >= len(recs) {
		return []*model.User{}, nil
	}
	recs = recs[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(recs) {
		recs = recs[:opts.Limit]
	}
	users := make([]*model.User, 0, len(recs))
	for _, r := range recs {
		users = append(users, model.ReconstituteUser(r, f.clock))
	}
	return users, nil
}

func (f *fakeUserRepo) Count(_ context.Context, name string) (int, error) {
	return len(f.filtered(name)), nil
}

func (f *fakeUserRepo) Save(_ context.Context, u *model.User) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.put(u)
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, uuid string) error {
	if _, ok := f.records[uuid]; !ok {
		return apperror.NotFound("user", uuid)
	}
	delete(f.records, uuid)
	return nil
}

func (f *fakeUserRepo) EmailExists(_ context.Context, email, excludeUUID string) (bool, error) {
	for _, r := range f.records {
		if r.Email == email && r.UUID != excludeUUID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) UsernameExists(_ context.Context, username, excludeUUID string) (bool, error) {
	for _, r := range f.records {
		if r.Username == username && r.UUID != excludeUUID {
			return true, nil
		}
	}
	return false, nil
}

// plainHasher keeps tests fast; bcrypt itself is tested in package auth.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "h:" + p, nil }
func (plainHasher) Verify(h, p string) error {
	if h != "h:"+p {
		return errors.New("mismatch")
	}
	return nil
}

var start = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func strPtr(s string) *string { return &s }
