package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Gradient-IIITS/TrackMail-UserService/internal/logger"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/registration"
	"github.com/Gradient-IIITS/TrackMail-UserService/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	err       error
	published []map[string]any
}

func (p *stubPublisher) PublishNewUserCreated(_ context.Context, fields map[string]any) error {
	p.published = append(p.published, fields)
	return p.err
}

func (p *stubPublisher) Close() error { return nil }

type stubBroker bool

func (b stubBroker) IsConnected() bool { return bool(b) }

type fixture struct {
	router    *gin.Engine
	store     *store.Memory
	publisher *stubPublisher
}

func newFixture(t *testing.T, broker BrokerStatus) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemory()
	pub := &stubPublisher{}
	svc := registration.NewService(st, pub, logger.NewNop(), registration.WithHashRounds(1000))
	h := NewUserHandler(logger.NewNop(), "user-service-test", svc, st, broker)

	router := gin.New()
	router.Use(logger.GinMiddleware(logger.NewNop()))
	router.GET("/health", h.HealthCheck)
	router.POST("/", h.CreateUser)

	return &fixture{router: router, store: st, publisher: pub}
}

func (f *fixture) post(t *testing.T, form url.Values) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func validForm() url.Values {
	return url.Values{
		"username":   {"johnsmith"},
		"first_name": {"John"},
		"last_name":  {"Smith"},
		"email":      {"john@example.com"},
		"password":   {"s3cret-Passw0rd"},
	}
}

func TestCreateUserHandler(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newFixture(t, nil)

		rec, body := f.post(t, validForm())

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "User created successfully", body["message"])
		assert.NotEmpty(t, body["request_id"])
		user := body["user"].(map[string]any)
		assert.Equal(t, "johnsmith", user["username"])
		assert.NotEmpty(t, user["id"])
		assert.NotContains(t, user, "password")
		assert.NotContains(t, rec.Body.String(), "s3cret-Passw0rd")

		assert.Len(t, f.store.Users(), 1)
		assert.Len(t, f.publisher.published, 1)
	})

	t.Run("first value wins for repeated keys", func(t *testing.T) {
		f := newFixture(t, nil)
		form := validForm()
		form["username"] = []string{"johnsmith", "someoneelse"}

		rec, _ := f.post(t, form)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "johnsmith", f.store.Users()[0].Username)
	})

	t.Run("validation failure", func(t *testing.T) {
		f := newFixture(t, nil)
		form := validForm()
		form.Del("first_name")
		form.Set("email", "nope")

		rec, body := f.post(t, form)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Validation failed", body["error"])
		assert.Equal(t, []any{
			map[string]any{"first_name": "this field is required"},
			map[string]any{"email": "invalid email address"},
		}, body["errors"])
		assert.Empty(t, f.store.Users())
		assert.Empty(t, f.publisher.published)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.FailWith(errors.New("connection refused"))

		rec, body := f.post(t, validForm())

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, map[string]any{"error": "Failed to create user"}, body)
		assert.Empty(t, f.publisher.published)
	})

	t.Run("notification failure is reported but user is created", func(t *testing.T) {
		f := newFixture(t, nil)
		f.publisher.err = errors.New("broker unreachable")

		rec, body := f.post(t, validForm())

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "User created, notification not delivered", body["message"])
		assert.NotEmpty(t, body["warning"])
		assert.Len(t, f.store.Users(), 1)
	})

	t.Run("unparsable body", func(t *testing.T) {
		f := newFixture(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("username=%zz"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()

		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.store.Users())
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("broker disabled", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", body["status"])
		assert.Equal(t, false, body["broker_enabled"])
		assert.NotContains(t, body, "broker_connected")
	})

	t.Run("broker connected", func(t *testing.T) {
		f := newFixture(t, stubBroker(true))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["broker_connected"])
	})

	t.Run("store down", func(t *testing.T) {
		f := newFixture(t, stubBroker(false))
		f.store.FailWith(errors.New("no reachable servers"))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "DEGRADED", body["status"])
		assert.Equal(t, false, body["broker_connected"])
	})
}
