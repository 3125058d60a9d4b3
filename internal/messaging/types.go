package messaging

import (
	"context"
	"encoding/json"
)

const (
	// KindCreate tags a notification announcing a newly created user.
	KindCreate = "CREATE"
	// ModuleUserService identifies this service as the origin. It doubles as
	// the name of the fanout exchange notifications are published to.
	ModuleUserService = "USER_SERVICE"

	KindKey   = "create"
	ModuleKey = "module"
)

// Notification is the payload announcing a user change to other services.
// It serializes as a single flat JSON object: the caller-supplied fields
// plus the kind and module tags, which take precedence over a caller field
// of the same name.
type Notification struct {
	kind   string
	module string
	fields map[string]any
}

// NewUserCreated builds a CREATE notification. fields is copied, so later
// changes to the caller's map do not affect the notification.
func NewUserCreated(fields map[string]any, module string) Notification {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Notification{
		kind:   KindCreate,
		module: module,
		fields: copied,
	}
}

func (n Notification) Kind() string   { return n.kind }
func (n Notification) Module() string { return n.module }

func (n Notification) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.fields)+2)
	for k, v := range n.fields {
		out[k] = v
	}
	out[KindKey] = n.kind
	out[ModuleKey] = n.module
	return json.Marshal(out)
}

// Publisher announces user lifecycle events to interested services.
type Publisher interface {
	PublishNewUserCreated(ctx context.Context, fields map[string]any) error
	Close() error
}
