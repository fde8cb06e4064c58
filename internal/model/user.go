// Package model defines the data structures used throughout the application.
package model

// User is a stored account record.
//
// ID is assigned by the store at creation and never reused. Email is unique
// and compared as an exact, case-sensitive string. PasswordHash is empty for
// accounts created administratively without a password.
//
// WHY json:"-" ON PasswordHash?
// The store does not redact anything; it is the boundary's job to emit
// PublicUser. The tag is a second line: a User that slips into a JSON
// response still never carries its hash.
type User struct {
	ID           int64  `json:"id"    db:"id"`
	Name         string `json:"name"  db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-"     db:"password_hash"`
}

// PublicUser is the only user shape that crosses the HTTP boundary.
type PublicUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public strips the password hash.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// UserPatch carries the optional fields of an update. A nil pointer means
// "leave unchanged".
type UserPatch struct {
	Name  *string
	Email *string
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil
}
