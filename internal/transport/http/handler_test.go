package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/order-service/internal/domain"
	"github.com/vladislavdragonenkov/order-service/internal/service/orders"
	"github.com/vladislavdragonenkov/order-service/internal/storage/memory"
)

type stubValidator struct {
	err error
}

func (s *stubValidator) Validate(_ context.Context, _ string) error {
	return s.err
}

type failingRepo struct {
	domain.OrderRepository
	insertErr error
	listErr   error
}

func (r *failingRepo) Insert(ctx context.Context, order domain.Order) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	return r.OrderRepository.Insert(ctx, order)
}

func (r *failingRepo) List(ctx context.Context) ([]domain.Order, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.OrderRepository.List(ctx)
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "http-test")
}

func newTestServer(t *testing.T, repo domain.OrderRepository, validator domain.UserValidator) *httptest.Server {
	t.Helper()
	svc := orders.NewService(repo, validator, nil, nil, quietLogger())
	router := NewRouter(NewHandler(svc, quietLogger()), quietLogger())
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func createBody() string {
	return `{
		"idempotencyKey": "k1",
		"userId": "u1",
		"productId": "p1",
		"quantity": 2,
		"unitPriceMinor": 1500,
		"totalPriceMinor": 3000,
		"description": "two lamps"
	}`
}

func postOrder(t *testing.T, server *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+"/api/orders", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHandler_CreateOrder(t *testing.T) {
	server := newTestServer(t, memory.NewOrderRepository(), &stubValidator{})

	resp := postOrder(t, server, createBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got orderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotEmpty(t, got.ID)
	require.Equal(t, "k1", got.IdempotencyKey)
	require.Equal(t, "CREATED", got.Status)
	require.Equal(t, int64(3000), got.TotalPriceMinor)
}

func TestHandler_CreateOrder_DuplicateReturnsSameOrder(t *testing.T) {
	server := newTestServer(t, memory.NewOrderRepository(), &stubValidator{})

	first := postOrder(t, server, createBody())
	require.Equal(t, http.StatusCreated, first.StatusCode)
	var firstOrder orderResponse
	require.NoError(t, json.NewDecoder(first.Body).Decode(&firstOrder))

	second := postOrder(t, server, createBody())
	require.Equal(t, http.StatusCreated, second.StatusCode)
	var secondOrder orderResponse
	require.NoError(t, json.NewDecoder(second.Body).Decode(&secondOrder))

	require.Equal(t, firstOrder.ID, secondOrder.ID)
}

func TestHandler_CreateOrder_ValidationErrors(t *testing.T) {
	server := newTestServer(t, memory.NewOrderRepository(), &stubValidator{})

	resp := postOrder(t, server, `{"idempotencyKey": "k1", "quantity": 0}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body.Errors, "User ID is required")
	require.Contains(t, body.Errors, "Product ID is required")
	require.Contains(t, body.Errors, "Quantity must be a positive integer")
}

func TestHandler_CreateOrder_InvalidJSON(t *testing.T) {
	server := newTestServer(t, memory.NewOrderRepository(), &stubValidator{})

	resp := postOrder(t, server, `{not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_CreateOrder_UserNotFound(t *testing.T) {
	server := newTestServer(t, memory.NewOrderRepository(), &stubValidator{err: domain.ErrUserNotFound})

	resp := postOrder(t, server, createBody())
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "Failed to create order. User ID [u1] not found!", body.Error)
}

func TestHandler_CreateOrder_UserServiceUnavailable(t *testing.T) {
	server := newTestServer(t, memory.NewOrderRepository(), &stubValidator{err: domain.ErrUserUnavailable})

	resp := postOrder(t, server, createBody())
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandler_CreateOrder_PersistenceFailure(t *testing.T) {
	repo := &failingRepo{
		OrderRepository: memory.NewOrderRepository(),
		insertErr:       errors.New("connection reset"),
	}
	server := newTestServer(t, repo, &stubValidator{})

	resp := postOrder(t, server, createBody())
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "Failed to create order", body.Error)
}

func TestHandler_ListOrders(t *testing.T) {
	server := newTestServer(t, memory.NewOrderRepository(), &stubValidator{})

	for _, key := range []string{"k1", "k2"} {
		body := strings.Replace(createBody(), "k1", key, 1)
		resp := postOrder(t, server, body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := http.Get(server.URL + "/api/orders")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []orderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 2)
}

func TestHandler_ListOrders_StoreFailure(t *testing.T) {
	repo := &failingRepo{
		OrderRepository: memory.NewOrderRepository(),
		listErr:         errors.New("down"),
	}
	server := newTestServer(t, repo, &stubValidator{})

	resp, err := http.Get(server.URL + "/api/orders")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandler_Root(t *testing.T) {
	server := newTestServer(t, memory.NewOrderRepository(), &stubValidator{})

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	require.Equal(t, "Order Service is running", buf.String())
}
