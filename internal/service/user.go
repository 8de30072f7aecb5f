package service

import (
	"context"
	"log/slog"
	"math"

	"github.com/sakif/usuarios-api/internal/apperror"
	"github.com/sakif/usuarios-api/internal/clock"
	"github.com/sakif/usuarios-api/internal/model"
	"github.com/sakif/usuarios-api/internal/repository"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// UserService enforces uniqueness and delegates validation to the entity.
type UserService struct {
	users     repository.UserRepository
	passwords model.PasswordHasher
	clock     clock.Clock
	logger    *slog.Logger
}

func NewUserService(users repository.UserRepository, passwords model.PasswordHasher, clk clock.Clock, logger *slog.Logger) *UserService {
	return &UserService{
		users:     users,
		passwords: passwords,
		clock:     clk,
		logger:    logger,
	}
}

// CreateUserInput carries a new account. Password is plaintext.
type CreateUserInput struct {
	FullName    string
	Username    string
	Email       string
	Password    string
	AvatarURL   *string
	CoverURL    *string
	Bio         *string
	AccessLevel model.AccessLevel
}

// UpdateUserInput is a partial update: nil fields are left alone.
type UpdateUserInput struct {
	FullName    *string
	Username    *string
	Email       *string
	Password    *string
	AvatarURL   *string
	CoverURL    *string
	Bio         *string
	AccessLevel *model.AccessLevel
}

// ListParams selects a page of users. Page is 1-based.
type ListParams struct {
	Page    int
	PerPage int
	Name    string
}

// UserPage is one page of a listing.
type UserPage struct {
	Users   []*model.User
	Total   int
	Page    int
	PerPage int
}

// Create validates, checks email and username are free, then saves.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	user, err := model.RegisterUser(model.RegisterParams{
		FullName:    in.FullName,
		Username:    in.Username,
		Email:       in.Email,
		Password:    in.Password,
		AvatarURL:   in.AvatarURL,
		CoverURL:    in.CoverURL,
		Bio:         in.Bio,
		AccessLevel: in.AccessLevel,
	}, s.passwords, s.clock)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUnique(ctx, user.Email(), user.Username(), ""); err != nil {
		return nil, err
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		slog.String("uuid", user.UUID()),
		slog.String("username", user.Username()),
	)
	return user, nil
}

// Get returns the user with the given UUID.
func (s *UserService) Get(ctx context.Context, uuid string) (*model.User, error) {
	return s.users.FindByUUID(ctx, uuid)
}

// List returns a page of users, newest first. A page number whose offset
// would overflow is a validation error.
func (s *UserService) List(ctx context.Context, p ListParams) (*UserPage, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	// the offset (Page-1)*PerPage must fit in an int
	if p.Page > math.MaxInt/p.PerPage {
		return nil, apperror.ValidationFailed("pagina", "pagina is too large")
	}

	users, err := s.users.List(ctx, repository.ListOptions{
		Limit:  p.PerPage,
		Offset: (p.Page - 1) * p.PerPage,
		Name:   p.Name,
	})
	if err != nil {
		return nil, err
	}

	total, err := s.users.Count(ctx, p.Name)
	if err != nil {
		return nil, err
	}

	return &UserPage{Users: users, Total: total, Page: p.Page, PerPage: p.PerPage}, nil
}

// Update applies the non-nil fields of in. Nothing is saved if any field is
// invalid or the new email or username belongs to someone else.
func (s *UserService) Update(ctx context.Context, uuid string, in UpdateUserInput) (*model.User, error) {
	user, err := s.users.FindByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}

	if in.FullName != nil {
		if err := user.SetFullName(*in.FullName); err != nil {
			return nil, err
		}
	}
	if in.Username != nil {
		if err := user.SetUsername(*in.Username); err != nil {
			return nil, err
		}
	}
	if in.Email != nil {
		if err := user.SetEmail(*in.Email); err != nil {
			return nil, err
		}
	}
	if in.Password != nil {
		if err := user.ChangePassword(*in.Password, s.passwords); err != nil {
			return nil, err
		}
	}
	if in.AvatarURL != nil {
		user.SetAvatarURL(in.AvatarURL)
	}
	if in.CoverURL != nil {
		user.SetCoverURL(in.CoverURL)
	}
	if in.Bio != nil {
		user.SetBio(in.Bio)
	}
	if in.AccessLevel != nil {
		if err := user.PromoteTo(*in.AccessLevel); err != nil {
			return nil, err
		}
	}

	if err := s.ensureUnique(ctx, user.Email(), user.Username(), user.UUID()); err != nil {
		return nil, err
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user updated", slog.String("uuid", user.UUID()))
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, uuid string) error {
	if err := s.users.Delete(ctx, uuid); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.String("uuid", uuid))
	return nil
}

func (s *UserService) Activate(ctx context.Context, uuid string) error {
	user, err := s.users.FindByUUID(ctx, uuid)
	if err != nil {
		return err
	}
	user.Activate()
	return s.users.Save(ctx, user)
}

func (s *UserService) Deactivate(ctx context.Context, uuid string) error {
	user, err := s.users.FindByUUID(ctx, uuid)
	if err != nil {
		return err
	}
	user.Deactivate()
	return s.users.Save(ctx, user)
}

// ensureUnique checks email first, then username. excludeUUID is the user
// being updated, or "" on create.
func (s *UserService) ensureUnique(ctx context.Context, email, username, excludeUUID string) error {
	taken, err := s.users.EmailExists(ctx, email, excludeUUID)
	if err != nil {
		return err
	}
	if taken {
		return apperror.Conflict("email", "email already registered")
	}

	taken, err = s.users.UsernameExists(ctx, username, excludeUUID)
	if err != nil {
		return err
	}
	if taken {
		return apperror.Conflict("username", "username already taken")
	}
	return nil
}
