// Package db holds the state of the faked HMC: resources (CPCs,
// partitions, jobs and partition elements) and the users allowed to log on.
//
// Two stores implement Store: Memory for tests and throwaway servers, and
// SQL which keeps everything in MySQL so the faked HMC survives restarts.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrNotFound is returned when a resource or user does not exist.
var ErrNotFound = errors.New("not found")

// Resource classes stored by the faked HMC.
const (
	ClassCpc       = "cpc"
	ClassPartition = "partition"
	ClassJob       = "job"
	ClassHBA       = "hba"
	ClassNIC       = "nic"
)

// Resource is one stored HMC resource. Properties are stored as JSON, so
// numbers come back as float64 from every store.
type Resource struct {
	URI        string
	Class      string
	Parent     string
	Properties map[string]any
	CreatedAt  time.Time
}

// Name returns the "name" property, or "".
func (r Resource) Name() string {
	s, _ := r.Properties["name"].(string)
	return s
}

// User is an HMC user allowed to log on.
type User struct {
	UserID       string    `db:"userid"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Store persists the faked HMC state.
type Store interface {
	GetResource(ctx context.Context, uri string) (Resource, error)
	// ListResources returns the resources of class below parent in creation
	// order. An empty parent matches every parent.
	ListResources(ctx context.Context, class, parent string) ([]Resource, error)
	// PutResource inserts or replaces a resource, keeping the creation time
	// of a replaced one.
	PutResource(ctx context.Context, r Resource) error
	DeleteResource(ctx context.Context, uri string) error
	FindResourceByName(ctx context.Context, class, parent, name string) (Resource, error)

	GetUser(ctx context.Context, userID string) (User, error)
	PutUser(ctx context.Context, u User) error

	Close() error
}

// EnsureDefaultAdmin creates or resets the given user with a bcrypt hash of
// password. Nothing is done when either value is empty.
func EnsureDefaultAdmin(ctx context.Context, s Store, userID, password string) error {
	if userID == "" || password == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u, err := s.GetUser(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		u = User{UserID: userID, CreatedAt: time.Now().UTC()}
	case err != nil:
		return err
	}
	u.PasswordHash = string(hash)
	return s.PutUser(ctx, u)
}

// CheckPassword reports whether password matches the user's hash.
func CheckPassword(u User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// cloneProperties deep-copies props through JSON so that callers never share
// nested maps or slices with the store.
func cloneProperties(props map[string]any) (map[string]any, error) {
	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	return out, nil
}
