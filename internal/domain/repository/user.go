package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound es el sentinel compartido por todos los repositorios.
var ErrNotFound = errors.New("repository: not found")

// User es la vista mínima que el core necesita de un usuario para autenticar.
type User struct {
	ID           string
	TenantID     string // puede estar vacío por bugs de migración: el core rechaza, nunca defaultea
	Email        string
	PasswordHash string // bcrypt
	Role         string
	DisabledAt   *time.Time
}

// Disabled indica si la cuenta está deshabilitada.
func (u *User) Disabled() bool {
	return u.DisabledAt != nil
}

// UserRepository resuelve usuarios para el flujo de login.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}
