package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/apierr"
	"github.com/congo-pay/mobile_money/internal/config"
	"github.com/congo-pay/mobile_money/internal/fee"
	"github.com/congo-pay/mobile_money/internal/logging"
	"github.com/congo-pay/mobile_money/internal/middleware"
)

const secret = "routes-test-secret"

type harness struct {
	t        *testing.T
	app      *fiber.App
	backends Backends
	tokens   map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	cfg := config.Config{
		AppEnv:                "test",
		JWTSecret:             secret,
		IdempotencyTTL:        time.Minute,
		UnitTimeout:           2 * time.Second,
		AgentOnboardingCredit: decimal.NewFromInt(10_000),
		FeeDisposal:           fee.Burn,
		RateLimitPerMinute:    1000,
	}
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: apierr.Handler(logger)})
	backends, err := Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logger})
	require.NoError(t, err)

	account.SeedAccount(backends.Accounts, "user-a", account.RoleUser, 200)
	account.SeedAccount(backends.Accounts, "user-b", account.RoleUser, 200)
	account.SeedAccount(backends.Accounts, "agent-1", account.RoleAgent, 10_000)

	h := &harness{t: t, app: app, backends: backends, tokens: map[string]string{}}
	for id, role := range map[string]string{"user-a": "user", "user-b": "user", "agent-1": "agent"} {
		token, err := middleware.SignToken([]byte(secret), id, role, time.Hour)
		require.NoError(t, err)
		h.tokens[id] = token
	}
	return h
}

func (h *harness) do(method, path, caller, body string, headers ...string) (int, map[string]any, []any) {
	h.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if caller != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+h.tokens[caller])
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	var (
		obj  map[string]any
		list []any
	)
	if len(raw) > 0 && raw[0] == '[' {
		require.NoError(h.t, json.Unmarshal(raw, &list), string(raw))
	} else if len(raw) > 0 {
		require.NoError(h.t, json.Unmarshal(raw, &obj), string(raw))
	}
	return resp.StatusCode, obj, list
}

func (h *harness) balance(caller string) string {
	h.t.Helper()
	status, body, _ := h.do(http.MethodGet, "/api/v1/balance", caller, "")
	require.Equal(h.t, http.StatusOK, status)
	return body["balance"].(string)
}

func TestSendMoneyEndToEnd(t *testing.T) {
	h := newHarness(t)

	status, body, _ := h.do(http.MethodPost, "/api/v1/send-money", "user-a", `{"recipient":"user-b","amount":"150"}`)
	require.Equal(t, http.StatusCreated, status, body)
	tx := body["transaction"].(map[string]any)
	assert.Equal(t, "completed", tx["status"])
	assert.Equal(t, "5", tx["fee"])

	assert.Equal(t, "45", h.balance("user-a"))
	assert.Equal(t, "350", h.balance("user-b"))

	status, body, _ = h.do(http.MethodPost, "/api/v1/send-money", "user-a", `{"recipient":"user-b","amount":40}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "below_minimum", body["error"])

	status, body, _ = h.do(http.MethodPost, "/api/v1/send-money", "user-a", `{"recipient":"ghost","amount":60}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "recipient_not_found", body["error"])

	status, body, _ = h.do(http.MethodPost, "/api/v1/send-money", "user-a", `{"recipient":"user-b","amount":60}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "insufficient_funds", body["error"])
}

func TestSendMoneyRequiresToken(t *testing.T) {
	h := newHarness(t)

	status, body, _ := h.do(http.MethodPost, "/api/v1/send-money", "", `{"recipient":"user-b","amount":60}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["error"])
}

func TestSendMoneyReplaysIdempotentRequest(t *testing.T) {
	h := newHarness(t)

	first, body1, _ := h.do(http.MethodPost, "/api/v1/send-money", "user-a", `{"recipient":"user-b","amount":80}`, "Idempotency-Key", "k-1")
	second, body2, _ := h.do(http.MethodPost, "/api/v1/send-money", "user-a", `{"recipient":"user-b","amount":80}`, "Idempotency-Key", "k-1")

	require.Equal(t, http.StatusCreated, first)
	require.Equal(t, http.StatusCreated, second)
	assert.Equal(t, body1, body2)
	assert.Equal(t, "120", h.balance("user-a"))
}

func TestCashOutApprovalEndToEnd(t *testing.T) {
	h := newHarness(t)

	status, body, _ := h.do(http.MethodPost, "/api/v1/cash-out", "user-a", `{"agentId":"agent-1","amount":"100"}`)
	require.Equal(t, http.StatusCreated, status, body)
	tx := body["transaction"].(map[string]any)
	assert.Equal(t, "pending", tx["status"])
	assert.Equal(t, "1.5", tx["fee"])
	id := tx["id"].(string)
	assert.Equal(t, "200", h.balance("user-a"))

	status, _, queue := h.do(http.MethodGet, "/api/v1/pending-transactions", "agent-1", "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, queue, 1)

	status, body, _ = h.do(http.MethodGet, "/api/v1/pending-transactions", "user-a", "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not_agent", body["error"])

	status, body, _ = h.do(http.MethodPatch, "/api/v1/approve-transaction/"+id, "user-b", `{"approve":true}`)
	assert.Equal(t, http.StatusForbidden, status)

	status, body, _ = h.do(http.MethodPatch, "/api/v1/approve-transaction/"+id, "agent-1", `{"approve":true}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "approved", body["transaction"].(map[string]any)["status"])
	assert.Equal(t, "98.5", h.balance("user-a"))
	assert.Equal(t, "10100", h.balance("agent-1"))

	status, body, _ = h.do(http.MethodPatch, "/api/v1/approve-transaction/"+id, "agent-1", `{"approve":false}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "already_processed", body["error"])

	status, _, queue = h.do(http.MethodGet, "/api/v1/pending-transactions", "agent-1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, queue)
}

func TestCashInRejectionEndToEnd(t *testing.T) {
	h := newHarness(t)

	status, body, _ := h.do(http.MethodPost, "/api/v1/cash-in", "user-a", `{"agentId":"agent-1","amount":500}`)
	require.Equal(t, http.StatusCreated, status, body)
	id := body["transaction"].(map[string]any)["id"].(string)

	status, body, _ = h.do(http.MethodPatch, "/api/v1/approve-transaction/"+id, "agent-1", `{"approve":false}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "rejected", body["transaction"].(map[string]any)["status"])
	assert.Equal(t, "200", h.balance("user-a"))

	status, body, _ = h.do(http.MethodPatch, "/api/v1/approve-transaction/"+id, "agent-1", `{"approve":true}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "already_processed", body["error"])

	status, body, _ = h.do(http.MethodPost, "/api/v1/cash-in", "user-a", `{"agentId":"user-b","amount":10}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "agent_not_found", body["error"])
}

func TestTransactionsHistory(t *testing.T) {
	h := newHarness(t)
	account.SeedBalance(h.backends.Accounts, "user-a", 10_000)

	for i := 0; i < 12; i++ {
		status, body, _ := h.do(http.MethodPost, "/api/v1/send-money", "user-a", `{"recipient":"user-b","amount":50}`)
		require.Equal(t, http.StatusCreated, status, body)
	}
	status, body, _ := h.do(http.MethodPost, "/api/v1/cash-in", "user-a", `{"agentId":"agent-1","amount":10}`)
	require.Equal(t, http.StatusCreated, status, body)

	status, _, list := h.do(http.MethodGet, "/api/v1/transactions", "user-a", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 10)
	assert.Equal(t, "cash-in", list[0].(map[string]any)["kind"])

	status, _, list = h.do(http.MethodGet, "/api/v1/transactions?kind=cash-in", "user-a", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 1)

	status, body, _ = h.do(http.MethodGet, "/api/v1/transactions?kind=bogus", "user-a", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_kind", body["error"])
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	status, body, _ := h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "memory", body["status"].(map[string]any)["postgres"])
}
