package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gradient-IIITS/TrackMail-UserService/internal/logger"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/registration"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/store"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxFormMemory = 1 << 20
	pingTimeout   = 2 * time.Second
)

type Registrar interface {
	CreateUser(ctx context.Context, fields map[string]string) (*store.User, error)
}

// BrokerStatus reports whether a broker connection is currently held. The
// connection is opened lazily, so false does not mean the broker is down.
type BrokerStatus interface {
	IsConnected() bool
}

type UserHandler struct {
	logger      logger.Logger
	registrar   Registrar
	store       store.Store
	broker      BrokerStatus
	serviceName string
}

// NewUserHandler builds the HTTP boundary. broker may be nil when publishing
// is disabled.
func NewUserHandler(log logger.Logger, serviceName string, registrar Registrar, st store.Store, broker BrokerStatus) *UserHandler {
	return &UserHandler{
		logger:      log,
		registrar:   registrar,
		store:       st,
		broker:      broker,
		serviceName: serviceName,
	}
}

func (h *UserHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":         "OK",
		"service":        h.serviceName,
		"store":          "OK",
		"broker_enabled": h.broker != nil,
	}

	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnCtx(ctx, "Store ping failed", logger.Err(err))
		status = http.StatusServiceUnavailable
		body["status"] = "DEGRADED"
		body["store"] = err.Error()
	}

	if h.broker != nil {
		body["broker_connected"] = h.broker.IsConnected()
	}

	c.JSON(status, body)
}

// CreateUser handles a form-encoded registration.
func (h *UserHandler) CreateUser(c *gin.Context) {
	ctx := c.Request.Context()

	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.ErrorCtx(ctx, "Invalid request body",
			logger.Err(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	fields := make(map[string]string, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}

	tracing.AddSpanAttributes(ctx,
		attribute.String("operation", "create_user"),
		attribute.Int("form.fields", len(fields)),
	)

	h.logger.InfoCtx(ctx, "Registering user",
		logger.String("username", fields[registration.FieldUsername]))

	user, err := h.registrar.CreateUser(ctx, fields)

	var (
		validationErr   *registration.ValidationError
		notificationErr *registration.NotificationError
	)
	switch {
	case err == nil:
		h.logger.InfoCtx(ctx, "User created successfully",
			logger.String("user_id", user.ID))
		c.JSON(http.StatusCreated, gin.H{
			"message":    "User created successfully",
			"user":       user.PublicFields(),
			"request_id": logger.GetRequestIDFromGin(c),
		})

	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Validation failed",
			"errors": validationErr.Violations,
		})

	case errors.As(err, &notificationErr) && user != nil:
		h.logger.WarnCtx(ctx, "User created without notification",
			logger.String("user_id", user.ID),
			logger.Err(err))
		c.JSON(http.StatusCreated, gin.H{
			"message":    "User created, notification not delivered",
			"user":       user.PublicFields(),
			"warning":    "other services were not notified about this user",
			"request_id": logger.GetRequestIDFromGin(c),
		})

	default:
		h.logger.ErrorCtx(ctx, "Failed to create user",
			logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create user",
		})
	}
}
