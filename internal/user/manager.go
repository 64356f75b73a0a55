// Package user implements account registration and password verification.
// It hands the engine nothing but validated identities; game state never
// depends on it.
package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gametable/gametable-server-go/internal/repository"
)

const bcryptCost = 10

// ErrInvalidCredentials is returned when a login fails, without
// distinguishing a bad username from a bad password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUsernameTaken is returned when registering an existing username.
var ErrUsernameTaken = errors.New("username already taken")

// User is the public view of an account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Store is the persistence surface the manager needs.
type Store interface {
	Create(ctx context.Context, user repository.UserRecord) error
	GetByUsername(ctx context.Context, username string) (repository.UserRecord, error)
	Exists(ctx context.Context, username string) (bool, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
}

// Manager handles account lifecycle and per-user data directories.
type Manager struct {
	store   Store
	dataDir string
	logger  *zap.Logger
}

// NewManager creates a user manager. dataDir is the root of the on-disk
// player data tree.
func NewManager(store Store, dataDir string, logger *zap.Logger) *Manager {
	return &Manager{
		store:   store,
		dataDir: dataDir,
		logger:  logger,
	}
}

// Register creates a new account, hashes the password with bcrypt, and
// seeds the user's data directory with the default sleeve image.
func (m *Manager) Register(ctx context.Context, username, password string) (User, error) {
	taken, err := m.store.Exists(ctx, username)
	if err != nil {
		return User{}, err
	}
	if taken {
		return User{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	record := repository.UserRecord{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := m.store.Create(ctx, record); err != nil {
		return User{}, err
	}

	if err := m.seedUserDir(username); err != nil {
		// The account exists; a missing default sleeve is cosmetic.
		m.logger.Warn("failed to seed user directory",
			zap.String("username", username),
			zap.Error(err),
		)
	}

	m.logger.Info("user registered", zap.String("username", username))
	return User{ID: record.ID, Username: record.Username}, nil
}

// Login verifies a username/password pair.
func (m *Manager) Login(ctx context.Context, username, password string) (User, error) {
	record, err := m.store.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return User{ID: record.ID, Username: record.Username}, nil
}

// ResetPassword replaces a user's password.
func (m *Manager) ResetPassword(ctx context.Context, username, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := m.store.UpdatePassword(ctx, username, string(hash)); err != nil {
		return err
	}
	m.logger.Info("password reset", zap.String("username", username))
	return nil
}

// IsAdmin reports whether the username is listed in the admins file. A
// missing file means no admins.
func (m *Manager) IsAdmin(username string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(m.dataDir, "General", "admins.txt"))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read admins file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == username {
			return true, nil
		}
	}
	return false, nil
}

// UserDir returns the user's data directory path.
func (m *Manager) UserDir(username string) string {
	return filepath.Join(m.dataDir, "Players", username)
}

// seedUserDir creates the user's data directory and copies the blank
// default sleeve into it.
func (m *Manager) seedUserDir(username string) error {
	dir := m.UserDir(username)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create user directory: %w", err)
	}

	src, err := os.Open(filepath.Join(m.dataDir, "General", "blank.jpg"))
	if err != nil {
		return fmt.Errorf("open default sleeve: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, "sleeve.jpg"))
	if err != nil {
		return fmt.Errorf("create sleeve: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy default sleeve: %w", err)
	}
	return nil
}
