package repository

import (
	"fmt"

	"github.com/sakif/userdesk/internal/model"
)

// SeedAccount is a pre-provisioned account present at process start.
// Seed emails and passwords are deployment-owned constants.
type SeedAccount struct {
	ID       int64
	Name     string
	Email    string
	Password string
}

// DefaultSeeds are the two bootstrap accounts.
var DefaultSeeds = []SeedAccount{
	{ID: 1, Name: "John Doe", Email: "john@example.com", Password: "password123"},
	{ID: 2, Name: "Jane Smith", Email: "jane@example.com", Password: "password123"},
}

// Hasher is the part of auth.PasswordService the seeder needs.
type Hasher interface {
	Hash(plaintext string) (string, error)
}

// BuildSeedUsers hashes the seed passwords and returns ready-to-insert records.
// Stores initialise their identity counter above the highest seed id.
func BuildSeedUsers(hasher Hasher, seeds []SeedAccount) ([]model.User, error) {
	users := make([]model.User, 0, len(seeds))
	for _, s := range seeds {
		hash, err := hasher.Hash(s.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing seed password for %s: %w", s.Email, err)
		}
		users = append(users, model.User{
			ID:           s.ID,
			Name:         s.Name,
			Email:        s.Email,
			PasswordHash: hash,
		})
	}
	return users, nil
}
