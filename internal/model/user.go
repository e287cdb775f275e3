package model

import "time"

// Roles understood by the API.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// User represents an application user record as stored in the
// `users` table. Only admins may act on anomalies and locks; every
// logged-in user counts as an active viewer for the detection scheduler.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login name.
//	PasswordHash – bcrypt hashed password.
//	Role         – admin or student.
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}
