package directory

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("directory: user not found")
	ErrInvalidArgument    = errors.New("directory: invalid argument")
	ErrInvalidCredentials = errors.New("directory: invalid credentials")
)

// Repository is the persistence contract for directory entries.
type Repository interface {
	Create(ctx context.Context, u User) (User, error)
	ByID(ctx context.Context, id int64) (User, error)
	ByUsername(ctx context.Context, username string) (User, error)
	ByEmail(ctx context.Context, email string) (User, error)
	ByPhone(ctx context.Context, phone string) (User, error)
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int, error)
}

// Service exposes directory lookups and credential checks.
// It is the leaf dependency of every other module.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) Create(ctx context.Context, username, email, phone, password string) (User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if username == "" || email == "" || phone == "" || password == "" {
		return User{}, ErrInvalidArgument
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, User{
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
	})
}

func (s *Service) ByID(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, ErrInvalidArgument
	}
	return s.repo.ByID(ctx, id)
}

func (s *Service) ByUsername(ctx context.Context, username string) (User, error) {
	if strings.TrimSpace(username) == "" {
		return User{}, ErrInvalidArgument
	}
	return s.repo.ByUsername(ctx, strings.TrimSpace(username))
}

func (s *Service) ByEmail(ctx context.Context, email string) (User, error) {
	if strings.TrimSpace(email) == "" {
		return User{}, ErrInvalidArgument
	}
	return s.repo.ByEmail(ctx, strings.TrimSpace(email))
}

func (s *Service) ByPhone(ctx context.Context, phone string) (User, error) {
	if strings.TrimSpace(phone) == "" {
		return User{}, ErrInvalidArgument
	}
	return s.repo.ByPhone(ctx, strings.TrimSpace(phone))
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Authenticate validates a username/password pair.
// Failures are deliberately indistinguishable: unknown user and wrong
// password both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	if username == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	u, err := s.repo.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}
