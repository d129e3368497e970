package auth

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ukydev/fleet-control/internal/models"
)

// Directory is an in-memory operator registry keyed by username.
type Directory struct {
	mu        sync.RWMutex
	svc       *Service
	operators map[string]*models.Operator
}

// NewDirectory returns an empty directory hashing passwords with svc.
func NewDirectory(svc *Service) *Directory {
	return &Directory{svc: svc, operators: make(map[string]*models.Operator)}
}

// Add registers an active operator with a bcrypt-hashed password.
func (d *Directory) Add(username, password string, role models.Role) (*models.Operator, error) {
	if len(username) < 3 {
		return nil, fmt.Errorf("username must be at least 3 characters long")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters long")
	}
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	hash, err := d.svc.HashPassword(password)
	if err != nil {
		return nil, err
	}
	op := &models.Operator{
		ID:           "op-" + uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	d.mu.Lock()
	d.operators[username] = op
	d.mu.Unlock()
	return op, nil
}

// Deactivate blocks future logins for username.
func (d *Directory) Deactivate(username string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	op, ok := d.operators[username]
	if ok {
		op.IsActive = false
	}
	return ok
}

// Authenticate checks credentials and stamps the last login time.
func (d *Directory) Authenticate(username, password string) (models.Operator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	op, ok := d.operators[username]
	if !ok || !d.svc.CheckPassword(password, op.PasswordHash) {
		return models.Operator{}, ErrInvalidCredentials
	}
	if !op.IsActive {
		return models.Operator{}, ErrOperatorInactive
	}
	now := d.svc.now()
	op.LastLogin = &now
	return *op, nil
}
