package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"income-tax/internal/domain"
	"income-tax/internal/repository"
)

// Default seed credential written to an empty or unreadable store.
const (
	DefaultSeedUsername = "admin"
	DefaultSeedPassword = "admin123"
)

// ErrPasswordRejected means the password scheme could not store the password,
// e.g. bcrypt refusing input longer than 72 bytes.
var ErrPasswordRejected = errors.New("password rejected")

// UserService describes user lifecycle operations.
type UserService interface {
	Bootstrap(ctx context.Context)
	Authenticate(ctx context.Context, username, password string) bool
	Register(ctx context.Context, username, password string) (bool, error)
	Usernames(ctx context.Context) []string
	SeedUsername() string
}

type UserServiceConfig struct {
	Scheme       PasswordScheme
	SeedUsername string
	SeedPassword string
	Logger       *logrus.Logger
}

type userService struct {
	creds  repository.CredentialRepository
	cfg    UserServiceConfig
	logger *logrus.Logger

	mu    sync.RWMutex
	users []domain.Credential
}

func NewUserService(creds repository.CredentialRepository, cfg UserServiceConfig) UserService {
	if cfg.Scheme == nil {
		cfg.Scheme = PlainPasswords{}
	}
	if cfg.SeedUsername == "" {
		cfg.SeedUsername = DefaultSeedUsername
	}
	if cfg.SeedPassword == "" {
		cfg.SeedPassword = DefaultSeedPassword
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &userService{
		creds:  creds,
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Bootstrap loads the credential collection, seeding it when nothing usable is stored.
func (s *userService) Bootstrap(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.creds.Load(ctx)
	switch {
	case err == nil && len(users) > 0:
		s.users = users
		s.logger.Infof("loaded %d credentials", len(users))
		return
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		s.logger.Warnf("credential store unreadable, seeding defaults: %v", err)
	default:
		s.logger.Info("no credentials stored, seeding defaults")
	}

	password, err := s.cfg.Scheme.Encode(s.cfg.SeedPassword)
	if err != nil {
		s.logger.Errorf("encode seed credential: %v", err)
		return
	}
	s.users = []domain.Credential{{Username: s.cfg.SeedUsername, Password: password}}
	s.persistLocked(ctx)
}

func (s *userService) Authenticate(ctx context.Context, username, password string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username && s.cfg.Scheme.Matches(u.Password, password) {
			return true
		}
	}
	return false
}

// Register appends a new credential. It returns false if the username is
// taken, and ErrPasswordRejected when the password cannot be stored.
func (s *userService) Register(ctx context.Context, username, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return false, nil
		}
	}

	stored, err := s.cfg.Scheme.Encode(password)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPasswordRejected, err)
	}
	s.users = append(s.users, domain.Credential{Username: username, Password: stored})
	s.persistLocked(ctx)
	return true, nil
}

// SeedUsername is the effective seed (administrator) username after defaults.
func (s *userService) SeedUsername() string {
	return s.cfg.SeedUsername
}

func (s *userService) Usernames(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.users))
	for i, u := range s.users {
		names[i] = u.Username
	}
	return names
}

// persistLocked saves the whole collection. A failed save is logged and the
// in-memory list stays authoritative for the rest of the process.
func (s *userService) persistLocked(ctx context.Context) {
	snapshot := make([]domain.Credential, len(s.users))
	copy(snapshot, s.users)
	if err := s.creds.Save(ctx, snapshot); err != nil {
		s.logger.Errorf("persist credentials: %v", err)
	}
}
