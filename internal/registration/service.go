// Package registration validates, stores and announces new users.
package registration

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Gradient-IIITS/TrackMail-UserService/internal/logger"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/messaging"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/metrics"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/store"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type Service struct {
	store      store.Store
	publisher  messaging.Publisher
	logger     logger.Logger
	hashRounds int
	now        func() time.Time
}

type Option func(*Service)

// WithHashRounds sets the PBKDF2 iteration count. Values below 1 use
// DefaultHashRounds.
func WithHashRounds(rounds int) Option {
	return func(s *Service) {
		s.hashRounds = rounds
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wires the registration flow. publisher may be nil, in which case
// users are stored without being announced.
func NewService(st store.Store, publisher messaging.Publisher, log logger.Logger, options ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// CreateUser runs validation, hashing, persistence and the user.created
// announcement, in that order.
//
// On a *ValidationError or *PersistenceError the user is nil and nothing was
// announced. On a *NotificationError the returned user has been stored and
// stays stored; only the announcement failed.
func (s *Service) CreateUser(ctx context.Context, fields map[string]string) (*store.User, error) {
	ctx, span := tracing.StartSpan(ctx, "registration.create_user")
	defer span.End()

	if violations := Validate(fields); len(violations) > 0 {
		metrics.ValidationFailuresTotal.Inc()
		tracing.AddSpanAttributes(ctx, attribute.Int("registration.violations", len(violations)))
		s.logger.WarnCtx(ctx, "Rejected registration", logger.Int("violations", len(violations)))
		return nil, &ValidationError{Violations: violations}
	}

	hash, err := HashPassword(fields[FieldPassword], s.hashRounds)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Username:     fields[FieldUsername],
		FirstName:    fields[FieldFirstName],
		LastName:     fields[FieldLastName],
		Email:        fields[FieldEmail],
		PasswordHash: hash,
		Extra:        extraFields(fields),
		CreatedAt:    s.now().UTC(),
	}

	ctx = logger.WithUserID(ctx, user.ID)
	tracing.AddSpanAttributes(ctx, attribute.String("user.id", user.ID))

	s.logger.InfoCtx(ctx, "Inserting user", logger.String("collection", store.UsersCollection))
	if err := s.store.InsertUser(ctx, user); err != nil {
		tracing.RecordError(ctx, err)
		s.logger.ErrorCtx(ctx, "Failed to insert user", logger.Err(err))
		return nil, &PersistenceError{Err: err}
	}
	metrics.UsersCreatedTotal.Inc()
	s.logger.InfoCtx(ctx, "Inserted user", logger.String("collection", store.UsersCollection))

	if s.publisher == nil {
		s.logger.DebugCtx(ctx, "Broker disabled, skipping user created notification")
		return user, nil
	}

	if err := s.publisher.PublishNewUserCreated(ctx, user.PublicFields()); err != nil {
		metrics.UserNotificationsTotal.WithLabelValues("failed").Inc()
		tracing.AddSpanAttributes(ctx, attribute.Bool("registration.notified", false))
		s.logger.ErrorCtx(ctx, "User created but notification failed", logger.Err(err))
		return user, &NotificationError{UserID: user.ID, Err: err}
	}

	metrics.UserNotificationsTotal.WithLabelValues("delivered").Inc()
	tracing.AddSpanAttributes(ctx, attribute.Bool("registration.notified", true))
	return user, nil
}

func extraFields(fields map[string]string) map[string]string {
	extra := make(map[string]string)
	for k, v := range fields {
		if slices.Contains(RequiredFields, k) || store.ReservedKey(k) {
			continue
		}
		extra[k] = v
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}
