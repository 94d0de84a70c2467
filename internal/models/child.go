package models

import "time"

// Child is the owner of naps and night naps. A child has one or more guardians.
type Child struct {
	ID          int64     `db:"id"`
	FirstName   string    `db:"first_name"`
	LastName    string    `db:"last_name"`
	DateOfBirth Date      `db:"date_of_birth"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// FullName returns "First Last"
func (c Child) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// ChildWithGuardians combines a child with the users allowed to record naps for it
type ChildWithGuardians struct {
	Child     Child
	Guardians []User
}
