package entity

import "time"

// User is an account in the surrounding user-management system. The workflow
// engine only reads users; account administration lives elsewhere.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name,omitempty"`
	Role         string    `json:"role,omitempty"`
	Department   string    `json:"department,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Unit is an organizational unit row. Name and Code are human-entered
// free text; canonical classification happens in the workflow package.
type Unit struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}
