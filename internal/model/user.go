// Package model defines the data structures used throughout the application.
//
// The User entity keeps its fields unexported. Every mutation goes through a
// method that validates the new value and stamps UpdatedAt from the injected
// clock, so a *User in memory is always in a state the store would accept.
package model

import (
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sakif/usuarios-api/internal/apperror"
	"github.com/sakif/usuarios-api/internal/clock"
)

// AccessLevel is the user's role. The values are stored and sent over the
// wire as-is.
type AccessLevel string

const (
	AccessUser      AccessLevel = "usuario"
	AccessAdmin     AccessLevel = "admin"
	AccessModerator AccessLevel = "moderador"
)

// Valid reports whether l is one of the known levels.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessUser, AccessAdmin, AccessModerator:
		return true
	}
	return false
}

const (
	minUsernameLen = 3
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New()

// PasswordHasher hashes and verifies passwords. auth.PasswordService
// satisfies it.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
}

// User is a registered account.
type User struct {
	uuid         string
	fullName     string
	username     string
	email        string
	passwordHash string
	avatarURL    *string
	coverURL     *string
	bio          *string
	accessLevel  AccessLevel
	active       bool

	passwordResetToken     *string
	emailVerificationToken *string

	createdAt time.Time
	updatedAt *time.Time

	clock clock.Clock
}

// RegisterParams is the input for RegisterUser. Password is plaintext.
type RegisterParams struct {
	FullName    string
	Username    string
	Email       string
	Password    string
	AvatarURL   *string
	CoverURL    *string
	Bio         *string
	AccessLevel AccessLevel // empty means AccessUser
}

// RegisterUser creates a brand-new user. It validates every field, hashes
// the password, assigns a random UUID and marks the account active.
func RegisterUser(p RegisterParams, hasher PasswordHasher, clk clock.Clock) (*User, error) {
	username := strings.TrimSpace(p.Username)
	email := strings.TrimSpace(p.Email)

	if err := validateFullName(p.FullName); err != nil {
		return nil, err
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(p.Password); err != nil {
		return nil, err
	}

	level := p.AccessLevel
	if level == "" {
		level = AccessUser
	}
	if !level.Valid() {
		return nil, apperror.ValidationFailed("nivel_acesso", "invalid access level")
	}

	hash, err := hasher.Hash(p.Password)
	if err != nil {
		return nil, err
	}

	return &User{
		uuid:         uuid.NewString(),
		fullName:     strings.TrimSpace(p.FullName),
		username:     username,
		email:        email,
		passwordHash: hash,
		avatarURL:    p.AvatarURL,
		coverURL:     p.CoverURL,
		bio:          p.Bio,
		accessLevel:  level,
		active:       true,
		createdAt:    clk.Now(),
		clock:        clk,
	}, nil
}

// Record is the stored shape of a user. The repository scans rows into it.
type Record struct {
	UUID                   string
	FullName               string
	Username               string
	Email                  string
	PasswordHash           string
	AvatarURL              *string
	CoverURL               *string
	Bio                    *string
	AccessLevel            AccessLevel
	Active                 bool
	PasswordResetToken     *string
	EmailVerificationToken *string
	CreatedAt              time.Time
	UpdatedAt              *time.Time
}

// ReconstituteUser rebuilds a user from stored data. Nothing is validated:
// the row was valid when it was written.
func ReconstituteUser(r Record, clk clock.Clock) *User {
	return &User{
		uuid:                   r.UUID,
		fullName:               r.FullName,
		username:               r.Username,
		email:                  r.Email,
		passwordHash:           r.PasswordHash,
		avatarURL:              r.AvatarURL,
		coverURL:               r.CoverURL,
		bio:                    r.Bio,
		accessLevel:            r.AccessLevel,
		active:                 r.Active,
		passwordResetToken:     r.PasswordResetToken,
		emailVerificationToken: r.EmailVerificationToken,
		createdAt:              r.CreatedAt,
		updatedAt:              r.UpdatedAt,
		clock:                  clk,
	}
}

// Record returns the stored shape of u.
func (u *User) Record() Record {
	return Record{
		UUID:                   u.uuid,
		FullName:               u.fullName,
		Username:               u.username,
		Email:                  u.email,
		PasswordHash:           u.passwordHash,
		AvatarURL:              u.avatarURL,
		CoverURL:               u.coverURL,
		Bio:                    u.bio,
		AccessLevel:            u.accessLevel,
		Active:                 u.active,
		PasswordResetToken:     u.passwordResetToken,
		EmailVerificationToken: u.emailVerificationToken,
		CreatedAt:              u.createdAt,
		UpdatedAt:              u.updatedAt,
	}
}

func (u *User) UUID() string { return u.uuid }
func (u *User) FullName() string { return u.fullName }
func (u *User) Username() string { return u.username }
func (u *User) Email() string { return u.email }
func (u *User) PasswordHash() string { return u.passwordHash }
func (u *User) AvatarURL() *string { return u.avatarURL }
func (u *User) CoverURL() *string { return u.coverURL }
func (u *User) Bio() *string { return u.bio }
func (u *User) AccessLevel() AccessLevel { return u.accessLevel }
func (u *User) Active() bool { return u.active }
func (u *User) PasswordResetToken() *string { return u.passwordResetToken }
func (u *User) EmailVerificationToken() *string { return u.emailVerificationToken }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() *time.Time { return u.updatedAt }

func (u *User) touch() {
	now := u.clock.Now()
	u.updatedAt = &now
}

func (u *User) SetFullName(name string) error {
	if err := validateFullName(name); err != nil {
		return err
	}
	u.fullName = strings.TrimSpace(name)
	u.touch()
	return nil
}

func (u *User) SetUsername(username string) error {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return err
	}
	u.username = username
	u.touch()
	return nil
}

func (u *User) SetEmail(email string) error {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}
	u.email = email
	u.touch()
	return nil
}

// SetAvatarURL replaces the avatar. nil clears it.
func (u *User) SetAvatarURL(url *string) {
	u.avatarURL = url
	u.touch()
}

func (u *User) SetCoverURL(url *string) {
	u.coverURL = url
	u.touch()
}

func (u *User) SetBio(bio *string) {
	u.bio = bio
	u.touch()
}

// ChangePassword validates and hashes the new password. A pending reset
// token is consumed.
func (u *User) ChangePassword(plaintext string, hasher PasswordHasher) error {
	if err := ValidatePassword(plaintext); err != nil {
		return err
	}
	hash, err := hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	u.passwordHash = hash
	u.passwordResetToken = nil
	u.touch()
	return nil
}

// CheckPassword reports whether plaintext matches the stored hash.
func (u *User) CheckPassword(plaintext string, hasher PasswordHasher) bool {
	return hasher.Verify(u.passwordHash, plaintext) == nil
}

func (u *User) Activate() {
	u.active = true
	u.touch()
}

func (u *User) Deactivate() {
	u.active = false
	u.touch()
}

// PromoteTo changes the access level.
func (u *User) PromoteTo(level AccessLevel) error {
	if !level.Valid() {
		return apperror.ValidationFailed("nivel_acesso", "invalid access level")
	}
	u.accessLevel = level
	u.touch()
	return nil
}

// IssuePasswordResetToken stores a fresh random token and returns it.
func (u *User) IssuePasswordResetToken() string {
	tok := uuid.NewString()
	u.passwordResetToken = &tok
	u.touch()
	return tok
}

func (u *User) IssueEmailVerificationToken() string {
	tok := uuid.NewString()
	u.emailVerificationToken = &tok
	u.touch()
	return tok
}

func validateFullName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperror.ValidationFailed("nome_completo", "full name is required")
	}
	return nil
}

// ValidateUsername checks the username rules:
//   - not empty
//   - does not start with '.' or '_'
//   - at least 3 characters
//   - only ASCII letters, digits, '.' and '_'
//   - at most one '.' or '_' in total
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if username[0] == '.' || username[0] == '_' {
		return apperror.ValidationFailed("username", "username cannot start with '.' or '_'")
	}
	if len(username) < minUsernameLen {
		return apperror.ValidationFailed("username", "username must be at least 3 characters")
	}

	separators := 0
	for _, c := range username {
		switch {
		case c == '.' || c == '_':
			separators++
		case c <= unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c)):
		default:
			return apperror.ValidationFailed("username", "username may only contain letters, digits, '.' and '_'")
		}
	}
	if separators > 1 {
		return apperror.ValidationFailed("username", "username may contain at most one '.' or '_'")
	}
	return nil
}

func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return apperror.ValidationFailed("email", "invalid email format")
	}
	return nil
}

// ValidatePassword requires 8 to 72 bytes with at least one upper-case
// letter, one lower-case letter and one digit.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return apperror.ValidationFailed("senha", "password is required")
	}
	if len(password) < minPasswordLen {
		return apperror.ValidationFailed("senha", "password must be at least 8 characters")
	}
	if len(password) > maxPasswordLen {
		return apperror.ValidationFailed("senha", "password must be 72 bytes or fewer")
	}

	var upper, lower, digit bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return apperror.ValidationFailed("senha", "password needs an upper-case letter, a lower-case letter and a digit")
	}
	return nil
}
