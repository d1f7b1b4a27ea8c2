package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otp-gateway/internal/apperr"
	"otp-gateway/internal/credentials"
	"otp-gateway/internal/gateway"
	"otp-gateway/internal/limiter"
	"otp-gateway/internal/metrics"
	"otp-gateway/internal/otp"
	"otp-gateway/internal/rotation"
	"otp-gateway/internal/scheduler"
	"otp-gateway/internal/syncjob"
)

type stubProvider struct {
	res otp.Result
	err error
}

func (p *stubProvider) Fetch(context.Context, credentials.Record) (otp.Result, error) {
	return p.res, p.err
}

type stubJob struct {
	res syncjob.Result
	err error
}

func (j *stubJob) Run(context.Context) (syncjob.Result, error) {
	return j.res, j.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	router   *gin.Engine
	provider *stubProvider
	job      *stubJob
	rotator  *rotation.Rotator
	sched    *scheduler.Scheduler
}

func newTestEnv(t *testing.T, ledger Pinger) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	store := credentials.NewStore(
		credentials.Record{AccountID: "a@x.com", PinSecret: "1234", TotpSeed: "JBSWY3DPEHPK3PXP"},
		credentials.Record{AccountID: "mail@gmail.com", PinSecret: "5678", MailAppPassword: "pw"},
		credentials.Record{AccountID: "nopin@x.com"},
	)
	lim := limiter.New(3)
	rot := rotation.NewRotator(rotation.Deps{Store: store, Limiter: lim, Metrics: m}, rotation.Options{})

	env := &testEnv{
		provider: &stubProvider{res: otp.Result{Code: "123456", Source: otp.SourceTOTP}},
		job:      &stubJob{},
		rotator:  rot,
	}
	svc := gateway.NewService(store, nil, lim, rot, env.provider, m)
	env.sched = scheduler.NewScheduler(0, env.job)

	env.router = gin.New()
	NewHandlers(svc, env.sched, ledger, reg, string(rot.Mode())).SetupRoutes(env.router)
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(v))
}

func TestGetOTPSuccess(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/get-otp", `{"accountEmail":"a@x.com","pin":"1234"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp GetOTPResponse
	decode(t, w, &resp)
	assert.Equal(t, GetOTPResponse{OTP: "123456", Source: "otp"}, resp)
}

func TestGetOTPAcceptsEmailAlias(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.res = otp.Result{Code: "654321"}

	w := env.do(http.MethodPost, "/get-otp", `{"email":"mail@gmail.com","pin":"5678"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"otp":"654321"}`, w.Body.String())
}

func TestGetOTPErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		code   apperr.Kind
	}{
		{"malformed body", `{`, http.StatusBadRequest, apperr.KindValidation},
		{"missing pin", `{"accountEmail":"a@x.com"}`, http.StatusBadRequest, apperr.KindValidation},
		{"unknown account", `{"accountEmail":"ghost@x.com","pin":"1"}`, http.StatusBadRequest, apperr.KindUnknownAccount},
		{"wrong pin", `{"accountEmail":"a@x.com","pin":"0000"}`, http.StatusUnauthorized, apperr.KindUnauthorized},
		{"pin not configured", `{"accountEmail":"nopin@x.com","pin":"1"}`, http.StatusForbidden, apperr.KindPinNotConfigured},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			w := env.do(http.MethodPost, "/get-otp", tc.body)
			assert.Equal(t, tc.status, w.Code)

			var resp ErrorResponse
			decode(t, w, &resp)
			assert.Equal(t, string(tc.code), resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestGetOTPRateLimitScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"accountEmail":"a@x.com","pin":"1234"}`

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/get-otp", body).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, env.do(http.MethodPost, "/get-otp", body).Code)
	env.rotator.Wait()

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/get-otp", body).Code)
}

func TestGetOTPEmptyMailbox(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.err = apperr.New(apperr.KindNoMessagesFound, "no code found")

	w := env.do(http.MethodPost, "/get-otp", `{"accountEmail":"mail@gmail.com","pin":"5678"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, "no code found", resp.Error)
}

func TestGetOTPTransportFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.err = apperr.Wrap(apperr.KindTransport, "mailbox connection failed", errors.New("i/o timeout"))

	w := env.do(http.MethodPost, "/get-otp", `{"accountEmail":"mail@gmail.com","pin":"5678"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "i/o timeout")
}

func TestSyncRotatedPins(t *testing.T) {
	env := newTestEnv(t, nil)
	env.job.res = syncjob.Result{Inspected: 3, Inserted: 1, Updated: 1, Skipped: 1}

	w := env.do(http.MethodPost, "/sync-rotated-pins", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"inspected":3,"inserted":1,"updated":1,"skipped":1}`, w.Body.String())

	env.job.err = errors.New("imap down")
	w = env.do(http.MethodPost, "/sync-rotated-pins", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"imap down"}`, w.Body.String())
}

func TestHealthCheck(t *testing.T) {
	w := newTestEnv(t, nil).do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "disabled", resp.Ledger)
	assert.Equal(t, string(rotation.ModePerAccount), resp.Mode)
	assert.Equal(t, "stopped", resp.Scheduler["status"])

	w = newTestEnv(t, stubPinger{err: errors.New("db down")}).do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSchedulerStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.job.res = syncjob.Result{Inspected: 1, Inserted: 1}
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/sync-rotated-pins", "").Code)

	w := env.do(http.MethodGet, "/api/v1/scheduler/status", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp SchedulerStatusResponse
	decode(t, w, &resp)
	assert.Equal(t, "stopped", resp.Status)
	assert.Nil(t, resp.NextRun)
	require.NotNil(t, resp.LastRun)
	assert.Equal(t, 1, resp.LastResult.Inserted)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodPost, "/get-otp", `{"accountEmail":"a@x.com","pin":"1234"}`)

	w := env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `otp_gateway_requests_total{outcome="success"} 1`)
}

func TestRunOnceStartsBackgroundSync(t *testing.T) {
	env := newTestEnv(t, nil)
	env.job.res = syncjob.Result{Inspected: 2, Updated: 2}

	w := env.do(http.MethodPost, "/api/v1/scheduler/run-once", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	env.sched.Wait()

	assert.Equal(t, 2, env.sched.Status().LastResult.Updated)
}
