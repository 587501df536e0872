package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v84"

	checkoutsvc "github.com/angelmondragon/checkout-bookkeeper/internal/checkout"
	"github.com/angelmondragon/checkout-bookkeeper/internal/checkout/helpers"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/config"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/logger"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubRedis struct {
	stubPinger
	data map[string]string
}

func newStubRedis() *stubRedis {
	return &stubRedis{data: map[string]string{}}
}

func (s *stubRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (s *stubRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	s.data[key] = str
	return true, nil
}

func (s *stubRedis) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:%s:%s", scope, id)
}

func (s *stubRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

type stubCheckoutService struct {
	completions int
}

func (s *stubCheckoutService) EditSession(ctx context.Context, sessionID uuid.UUID, edit helpers.SessionEdit) (*checkoutsvc.EditResult, error) {
	return &checkoutsvc.EditResult{Session: &models.CheckoutSession{ID: sessionID, Status: enums.CheckoutSessionStatusOpen}}, nil
}

func (s *stubCheckoutService) CompleteWithoutPayment(ctx context.Context, sessionID uuid.UUID) (*checkoutsvc.Result, error) {
	s.completions++
	return &checkoutsvc.Result{Session: &models.CheckoutSession{ID: sessionID, Status: enums.CheckoutSessionStatusSucceeded}}, nil
}

type stubWebhookService struct{}

func (stubWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) (string, error) {
	return metrics.OutcomeApplied, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Env: "test"},
		Stripe: config.StripeConfig{Env: "test", WebhookSecret: "whsec_test"},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"https://pay.example.com"}},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func TestHealthRoutes(t *testing.T) {
	router := NewRouter(testConfig(), testLogger(), stubPinger{}, newStubRedis(), nil, &stubCheckoutService{}, stubWebhookService{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
		if resp.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestReadinessFailsWhenDatabaseDown(t *testing.T) {
	router := NewRouter(testConfig(), testLogger(), stubPinger{err: errors.New("down")}, newStubRedis(), nil, &stubCheckoutService{}, stubWebhookService{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewReconcileMetrics(reg).Observe("charge.succeeded", metrics.OutcomeApplied, time.Millisecond)
	router := NewRouter(testConfig(), testLogger(), stubPinger{}, newStubRedis(), reg, &stubCheckoutService{}, stubWebhookService{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "charge.succeeded") {
		t.Fatalf("expected reconcile metrics in output")
	}
}

func TestCheckoutRoutesRequireIdempotencyKey(t *testing.T) {
	router := NewRouter(testConfig(), testLogger(), stubPinger{}, newStubRedis(), nil, &stubCheckoutService{}, stubWebhookService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout-sessions/"+uuid.NewString()+"/complete-without-payment", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCompleteWithoutPaymentReplaysByIdempotencyKey(t *testing.T) {
	svc := &stubCheckoutService{}
	router := NewRouter(testConfig(), testLogger(), stubPinger{}, newStubRedis(), nil, svc, stubWebhookService{})
	target := "/api/v1/checkout-sessions/" + uuid.NewString() + "/complete-without-payment"

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, target, nil)
		req.Header.Set("Idempotency-Key", "complete-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, resp.Code)
		}
	}
	if svc.completions != 1 {
		t.Fatalf("expected one completion, got %d", svc.completions)
	}
}

func TestStripeWebhookRouteRejectsUnsignedPayload(t *testing.T) {
	router := NewRouter(testConfig(), testLogger(), stubPinger{}, newStubRedis(), nil, &stubCheckoutService{}, stubWebhookService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutRoutesAnswerPreflight(t *testing.T) {
	svc := &stubCheckoutService{}
	router := NewRouter(testConfig(), testLogger(), stubPinger{}, newStubRedis(), nil, svc, stubWebhookService{})
	target := "/api/v1/checkout-sessions/" + uuid.NewString()

	req := httptest.NewRequest(http.MethodOptions, target, nil)
	req.Header.Set("Origin", "https://pay.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Idempotency-Key")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code < 200 || resp.Code >= 300 {
		t.Fatalf("expected 2xx got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://pay.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if got := resp.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPatch) {
		t.Fatalf("expected PATCH in allowed methods, got %q", got)
	}
	if got := strings.ToLower(resp.Header().Get("Access-Control-Allow-Headers")); !strings.Contains(got, "idempotency-key") {
		t.Fatalf("expected Idempotency-Key in allowed headers, got %q", got)
	}
	if svc.completions != 0 {
		t.Fatalf("preflight reached the handler")
	}
}

func TestCheckoutRoutesIgnoreUnknownOrigin(t *testing.T) {
	router := NewRouter(testConfig(), testLogger(), stubPinger{}, newStubRedis(), nil, &stubCheckoutService{}, stubWebhookService{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/checkout-sessions/"+uuid.NewString(), nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin, got %q", got)
	}
}
