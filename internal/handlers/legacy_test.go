package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ayush-jadaun/livekitagent/internal/config"
	"github.com/ayush-jadaun/livekitagent/internal/livekit"
	"github.com/ayush-jadaun/livekitagent/internal/payments"
	"github.com/ayush-jadaun/livekitagent/internal/service"
)

const testWebhookSecret = "whsec_test_0123456789"

func newTestHandlerSet() HandlerSet {
	cfg := &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTSecret:   "test-jwt-secret",
			JWTAudience: "authenticated",
		},
		LiveKit: config.LiveKitConfig{
			APIKey:    "devkey",
			APISecret: "devsecret-devsecret-devsecret-00",
			URL:       "wss://media.test.local",
			TokenTTL:  time.Hour,
		},
		Razorpay: config.RazorpayConfig{
			KeyID:         "rzp_test_key",
			KeySecret:     "rzp_test_secret",
			WebhookSecret: testWebhookSecret,
		},
	}

	logger := zerolog.Nop()
	return HandlerSet{
		log:        logger,
		cfg:        cfg,
		tokens:     livekit.NewTokenIssuer(cfg.LiveKit),
		provider:   payments.NewClient(cfg.Razorpay),
		reconciler: service.NewReconciler(nil, nil, nil, cfg.Entitlement, logger),
	}
}

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	newTestHandlerSet().Register(engine)
	return engine
}

func doRequest(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	engine := newTestEngine(t)

	rec := doRequest(engine, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"pong"}`, rec.Body.String())
}

func TestLegacyHealth(t *testing.T) {
	engine := newTestEngine(t)

	rec := doRequest(engine, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "livekit-backend-service", body["service"])
}

func TestLegacyConfig(t *testing.T) {
	engine := newTestEngine(t)

	rec := doRequest(engine, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "wss://media.test.local", body["livekit_url"])
	require.Equal(t, "running", body["server_status"])
}

func TestLegacyGetToken(t *testing.T) {
	engine := newTestEngine(t)

	rec := doRequest(engine, httptest.NewRequest(http.MethodGet, "/getToken?room=room_x&identity=u1&name=Asha", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	token := rec.Body.String()
	require.NotEmpty(t, token)
	require.Len(t, strings.Split(token, "."), 3)
}

func TestAuthedRoutesRejectMissingToken(t *testing.T) {
	engine := newTestEngine(t)

	rec := doRequest(engine, httptest.NewRequest(http.MethodGet, "/api/users/room", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func webhookSignature(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaymentWebhookRejectsMissingSignature(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(`{"event":"subscription.charged"}`))
	rec := doRequest(engine, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"invalid_signature"}`, rec.Body.String())
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(`{"event":"subscription.charged"}`))
	req.Header.Set("X-Razorpay-Signature", "deadbeef")
	rec := doRequest(engine, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentWebhookAcknowledgesUnhandledEvent(t *testing.T) {
	engine := newTestEngine(t)
	body := []byte(`{"event":"invoice.paid","payload":{}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-Razorpay-Signature", webhookSignature(body))
	req.Header.Set("X-Razorpay-Event-Id", "evt_test_1")
	rec := doRequest(engine, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var ack service.Ack
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	require.Equal(t, service.AckIgnored, ack.Status)
	require.Equal(t, "invoice.paid", ack.Event)
}

type fakeAgentStopper struct {
	stopped []string
}

func (f *fakeAgentStopper) Start(roomName string) error { return nil }

func (f *fakeAgentStopper) Stop(roomName string) {
	f.stopped = append(f.stopped, roomName)
}

func newLiveKitTestEngine(t *testing.T, stopper *fakeAgentStopper) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := newTestHandlerSet()
	h.sessions = service.NewSessionService(nil, nil, nil, nil, stopper, zerolog.Nop())
	engine := gin.New()
	h.Register(engine)
	return engine
}

func TestLiveKitWebhookStopsAgentOnRoomFinished(t *testing.T) {
	stopper := &fakeAgentStopper{}
	engine := newLiveKitTestEngine(t, stopper)
	body := `{"event":"room_finished","room":{"name":"room_u1"}}`

	req := httptest.NewRequest(http.MethodPost, "/livekit-webhook", strings.NewReader(body))
	rec := doRequest(engine, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"received"}`, rec.Body.String())
	require.Equal(t, []string{"room_u1"}, stopper.stopped)
}

func TestLiveKitWebhookIgnoresOtherEvents(t *testing.T) {
	stopper := &fakeAgentStopper{}
	engine := newLiveKitTestEngine(t, stopper)
	body := `{"event":"participant_joined","room":{"name":"room_u1"}}`

	req := httptest.NewRequest(http.MethodPost, "/livekit-webhook", strings.NewReader(body))
	rec := doRequest(engine, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"received"}`, rec.Body.String())
	require.Empty(t, stopper.stopped)
}
