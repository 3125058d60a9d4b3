// Package store persists registered users. Inserts are append-only: no
// upsert and no uniqueness check, so identical submissions produce distinct
// records.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gradient-IIITS/TrackMail-UserService/internal/logger"
)

const (
	DefaultDatabase = "UserDatabase"
	UsersCollection = "Users"
)

var ErrNotConfigured = errors.New("store: not configured")

// User is a validated registration as persisted. PasswordHash holds the
// one-way hash; the submitted password never reaches this type.
type User struct {
	ID           string
	Username     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	// Extra holds any submitted fields beyond the required ones.
	Extra     map[string]string
	CreatedAt time.Time
}

// ReservedKey reports whether an extra field name is owned by the store:
// "_"-prefixed keys such as "_id", and "$"-prefixed Mongo operators. Such
// keys are never persisted, returned or announced as extras.
func ReservedKey(key string) bool {
	return strings.HasPrefix(key, "_") || strings.HasPrefix(key, "$")
}

// PublicFields flattens u into the key/value form returned to clients and
// announced to other services. The password hash is left out. Named fields
// win over an Extra entry of the same key.
func (u *User) PublicFields() map[string]any {
	out := make(map[string]any, len(u.Extra)+6)
	for k, v := range u.Extra {
		if ReservedKey(k) {
			continue
		}
		out[k] = v
	}
	out["id"] = u.ID
	out["username"] = u.Username
	out["first_name"] = u.FirstName
	out["last_name"] = u.LastName
	out["email"] = u.Email
	out["created_at"] = u.CreatedAt.UTC().Format(time.RFC3339)
	// a stray "password" extra must never leak
	delete(out, "password")
	return out
}

type Store interface {
	InsertUser(ctx context.Context, u *User) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type Options struct {
	Driver        string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string
}

// Open connects the configured driver: "mongo", "postgres" or "memory".
func Open(ctx context.Context, opts Options, log logger.Logger) (Store, error) {
	switch opts.Driver {
	case "mongo", "":
		return NewMongo(ctx, opts.MongoURI, opts.MongoDatabase, log)
	case "postgres":
		return NewPostgres(ctx, opts.DatabaseURL, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrNotConfigured, opts.Driver)
	}
}
