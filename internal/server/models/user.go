package models

import "time"

// Account status values stored in the users table.
const (
	AccountStatusActive            = "active"
	AccountStatusPendingActivation = "pending_activation"
	AccountStatusDisabled          = "disabled"
)

// Roles recognised by the API.
const (
	RoleWorker     = "worker"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

type User struct {
	ID            string
	UserName      string
	PasswordHash  []byte
	Name          string
	Role          string
	AccountStatus string
	CreatedAt     time.Time
}
