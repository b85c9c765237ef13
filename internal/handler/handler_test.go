package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketd/internal/bus"
	"ticketd/internal/domain"
	"ticketd/internal/inventory"
	"ticketd/internal/repository"
	"ticketd/internal/service"
	"ticketd/internal/store"
	"ticketd/pkg/retry"
)

type apiEnv struct {
	router   *gin.Engine
	bookings *repository.BookingRepository
	inv      *inventory.Manager
	bus      *bus.MemoryBus
}

// newAPIEnv assembles the HTTP API over in-memory backends without saga
// handlers, so responses reflect exactly what the handlers wrote.
func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	b := bus.NewMemoryBus(&retry.Config{MaxRetries: 1, InitialInterval: time.Millisecond, Multiplier: 2.0})
	t.Cleanup(func() { _ = b.Close() })

	bookings := repository.NewBookingRepository(st)
	events := repository.NewEventRepository(st)
	inv := inventory.NewManager(st, nil)

	bookingSvc := service.NewBookingService(bookings, events, inv, b, 60*time.Second, nil)
	eventSvc := service.NewEventService(events, inv, nil)
	adminSvc := service.NewAdminService(bookings)

	router := gin.New()
	RegisterRoutes(router, &RouterConfig{
		Events:   NewEventHandler(eventSvc),
		Bookings: NewBookingHandler(bookingSvc),
		Admin:    NewAdminHandler(adminSvc),
	})

	return &apiEnv{router: router, bookings: bookings, inv: inv, bus: b}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) createEvent(t *testing.T, totalSeats int) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/events", gin.H{
		"title":       "Test Concert",
		"price":       5000,
		"total_seats": totalSeats,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res struct {
		Data domain.EventListing `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.Data.ID
}

func TestHealthEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateEventStatusCodes(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/events", gin.H{
		"title": "Missing seats",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/events", gin.H{
		"title":       "Bad slug",
		"slug":        "NOT VALID",
		"total_seats": 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.createEvent(t, 5) // 201 asserted inside
}

func TestGetEventStatusCodes(t *testing.T) {
	env := newAPIEnv(t)
	eventID := env.createEvent(t, 5)

	w := env.do(t, http.MethodGet, "/events/"+eventID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"seat_map"`)

	w = env.do(t, http.MethodGet, "/events/evt_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEvents(t *testing.T) {
	env := newAPIEnv(t)
	env.createEvent(t, 5)

	w := env.do(t, http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = env.do(t, http.MethodGet, "/events?slug=no-such-event", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestInitiateBookingStatusCodes(t *testing.T) {
	env := newAPIEnv(t)
	eventID := env.createEvent(t, 5)

	// 201 on success.
	w := env.do(t, http.MethodPost, "/bookings/init", gin.H{
		"event_id":       eventID,
		"seat_id":        "A1",
		"customer_name":  "Alice",
		"customer_email": "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"pending"`)
	assert.Contains(t, w.Body.String(), `"hold_expires_at"`)

	// 409 when the same seat is requested again.
	w = env.do(t, http.MethodPost, "/bookings/init", gin.H{
		"event_id":       eventID,
		"seat_id":        "A1",
		"customer_name":  "Bob",
		"customer_email": "bob@example.com",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 404 for a missing event.
	w = env.do(t, http.MethodPost, "/bookings/init", gin.H{
		"event_id":       "evt_missing",
		"customer_name":  "Alice",
		"customer_email": "alice@example.com",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 400 for malformed input.
	w = env.do(t, http.MethodPost, "/bookings/init", gin.H{
		"event_id":      eventID,
		"customer_name": "Alice",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 400 for a seat outside the seat map.
	w = env.do(t, http.MethodPost, "/bookings/init", gin.H{
		"event_id":       eventID,
		"seat_id":        "Z99",
		"customer_name":  "Alice",
		"customer_email": "alice@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitiateGeneralAdmissionSoldOut(t *testing.T) {
	env := newAPIEnv(t)
	eventID := env.createEvent(t, 1)

	_, err := env.inv.CreateHold(context.Background(), eventID, "A1", "bk_other", 60*time.Second)
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/bookings/init", gin.H{
		"event_id":       eventID,
		"customer_name":  "Alice",
		"customer_email": "alice@example.com",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "sold out")
}

func TestGetBookingStatusCodes(t *testing.T) {
	env := newAPIEnv(t)
	eventID := env.createEvent(t, 5)

	w := env.do(t, http.MethodPost, "/bookings/init", gin.H{
		"event_id":       eventID,
		"seat_id":        "A1",
		"customer_name":  "Alice",
		"customer_email": "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var res struct {
		Data struct {
			BookingID string `json:"booking_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	w = env.do(t, http.MethodGet, "/bookings/"+res.Data.BookingID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/bookings/bk_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListBookingsByEmail(t *testing.T) {
	env := newAPIEnv(t)
	eventID := env.createEvent(t, 5)

	w := env.do(t, http.MethodPost, "/bookings/init", gin.H{
		"event_id":       eventID,
		"seat_id":        "A1",
		"customer_name":  "Alice",
		"customer_email": "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/bookings?email=alice@example.com", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	// 400 when the email parameter is missing.
	w = env.do(t, http.MethodGet, "/bookings", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelBookingStatusCodes(t *testing.T) {
	env := newAPIEnv(t)
	eventID := env.createEvent(t, 5)

	w := env.do(t, http.MethodPost, "/bookings/init", gin.H{
		"event_id":       eventID,
		"seat_id":        "A1",
		"customer_name":  "Alice",
		"customer_email": "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var res struct {
		Data struct {
			BookingID string `json:"booking_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	w = env.do(t, http.MethodPost, fmt.Sprintf("/bookings/%s/cancel", res.Data.BookingID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"cancelling"`)

	w = env.do(t, http.MethodPost, "/bookings/bk_missing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// A terminal booking cannot be cancelled.
	failed := &domain.Booking{
		ID:            "bk_failed",
		EventID:       eventID,
		CustomerName:  "Bob",
		CustomerEmail: "bob@example.com",
		Status:        domain.BookingStatusFailed,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, env.bookings.Create(context.Background(), failed))

	w = env.do(t, http.MethodPost, "/bookings/bk_failed/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	eventID := env.createEvent(t, 5)

	w := env.do(t, http.MethodPost, "/bookings/init", gin.H{
		"event_id":       eventID,
		"seat_id":        "A1",
		"customer_name":  "Alice",
		"customer_email": "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/admin/bookings", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = env.do(t, http.MethodGet, "/admin/bookings?status=pending", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = env.do(t, http.MethodGet, "/admin/bookings?status=confirmed", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)

	w = env.do(t, http.MethodGet, "/admin/bookings?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/admin/customers", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}
