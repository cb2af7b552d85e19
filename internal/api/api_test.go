package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/ignite/campaign-dispatcher/internal/domain"
	"github.com/ignite/campaign-dispatcher/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatcher/internal/service/dispatch"
	"github.com/ignite/campaign-dispatcher/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Dispatcher = (*dispatch.Service)(nil)

type fakeDispatcher struct {
	today  time.Time
	gotDay time.Time
	report *domain.RunReport
	err    error
	calls  int
}

func (f *fakeDispatcher) Today() time.Time { return f.today }

func (f *fakeDispatcher) RunCampaignDispatch(_ context.Context, today time.Time) (*domain.RunReport, error) {
	f.calls++
	f.gotDay = today
	return f.report, f.err
}

type fakeQueue struct {
	depth int64
	err   error
}

func (f *fakeQueue) Len(context.Context) (int64, error) { return f.depth, f.err }

func newTestRouter(t *testing.T, d *fakeDispatcher, q QueueInspector, reports ReportReader) http.Handler {
	t.Helper()
	return SetupRoutes(NewHandlers(d, q, reports), NewHealthChecker(nil, nil, q))
}

func completedReport() *domain.RunReport {
	return &domain.RunReport{
		RunID:     "run-1",
		Date:      "2024-05-01",
		Status:    domain.RunCompleted,
		StartedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Campaigns: []domain.CampaignOutcome{{CampaignID: 1, Trigger: domain.TriggerGeneric, Enqueued: 2}},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestTriggerRun_NoBody(t *testing.T) {
	d := &fakeDispatcher{today: time.Now(), report: completedReport()}
	h := newTestRouter(t, d, nil, nil)

	rr := do(t, h, http.MethodPost, "/api/dispatch/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, d.gotDay.IsZero())

	var got domain.RunReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 2, got.TotalEnqueued())
}

func TestTriggerRun_WithDate(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	d := &fakeDispatcher{today: time.Date(2024, 5, 3, 0, 0, 0, 0, paris), report: completedReport()}
	h := newTestRouter(t, d, nil, nil)

	rr := do(t, h, http.MethodPost, "/api/dispatch/runs", `{"date":"2024-05-01"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, paris), d.gotDay)
}

func TestTriggerRun_BadInput(t *testing.T) {
	d := &fakeDispatcher{today: time.Now(), report: completedReport()}
	h := newTestRouter(t, d, nil, nil)

	rr := do(t, h, http.MethodPost, "/api/dispatch/runs", `{"date":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/dispatch/runs", `{"date":"01/05/2024"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, d.calls)
}

func TestTriggerRun_LockHeld(t *testing.T) {
	d := &fakeDispatcher{today: time.Now(), err: dispatch.ErrRunInProgress}
	h := newTestRouter(t, d, nil, nil)

	rr := do(t, h, http.MethodPost, "/api/dispatch/runs", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "run_in_progress", body.Code)
}

func TestTriggerRun_Aborted(t *testing.T) {
	report := completedReport()
	report.Status = domain.RunAborted
	report.Error = "list channel subscribers: connection refused"
	d := &fakeDispatcher{
		today:  time.Now(),
		report: report,
		err:    &dispatch.DataAccessError{Op: "list channel subscribers", Err: errors.New("connection refused")},
	}
	h := newTestRouter(t, d, nil, nil)

	rr := do(t, h, http.MethodPost, "/api/dispatch/runs", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var got domain.RunReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, domain.RunAborted, got.Status)
}

func TestTriggerRun_LockError(t *testing.T) {
	d := &fakeDispatcher{today: time.Now(), err: errors.New("acquire run lock: dial tcp: refused")}
	h := newTestRouter(t, d, nil, nil)

	rr := do(t, h, http.MethodPost, "/api/dispatch/runs", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "dial tcp")
}

func TestQueueDepth(t *testing.T) {
	d := &fakeDispatcher{today: time.Now()}

	rr := do(t, newTestRouter(t, d, &fakeQueue{depth: 42}, nil), http.MethodGet, "/api/dispatch/queue", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"depth":42}`, rr.Body.String())

	rr = do(t, newTestRouter(t, d, &fakeQueue{err: errors.New("down")}, nil), http.MethodGet, "/api/dispatch/queue", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = do(t, newTestRouter(t, d, nil, nil), http.MethodGet, "/api/dispatch/queue", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRuns_FromStorage(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(context.Background(), completedReport()))

	h := newTestRouter(t, &fakeDispatcher{today: time.Now()}, nil, store)

	rr := do(t, h, http.MethodGet, "/api/dispatch/runs/2024-05-01", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []domain.RunReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)

	rr = do(t, h, http.MethodGet, "/api/dispatch/runs/2024-05-01/run-1", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/dispatch/runs/2024-05-01/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/dispatch/runs/may-first", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRuns_NoStorage(t *testing.T) {
	h := newTestRouter(t, &fakeDispatcher{today: time.Now()}, nil, nil)
	rr := do(t, h, http.MethodGet, "/api/dispatch/runs/2024-05-01", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, &fakeDispatcher{today: time.Now()}, nil, nil)
	rr := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestHealth_AllUp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hc := NewHealthChecker(db, client, &fakeQueue{depth: 3})
	rr := httptest.NewRecorder()
	hc.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "up", status.Checks["database"].Status)
	assert.Equal(t, "up", status.Checks["redis"].Status)
	assert.Equal(t, "3 queued messages", status.Checks["queue"].Message)
}

func TestHealth_DatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	hc := NewHealthChecker(db, nil, nil)
	rr := httptest.NewRecorder()
	hc.HandleReadiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"unhealthy"`)
}

func TestDetermineOverallStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]ComponentCheck
		want   string
	}{
		{"nothing configured", map[string]ComponentCheck{
			"database": {Status: "down", Message: notConfigured},
			"redis":    {Status: "down", Message: notConfigured},
		}, "healthy"},
		{"redis down", map[string]ComponentCheck{
			"database": {Status: "up"},
			"redis":    {Status: "down", Message: "check failed"},
		}, "degraded"},
		{"slow queue", map[string]ComponentCheck{
			"database": {Status: "up"},
			"queue":    {Status: "degraded"},
		}, "degraded"},
		{"database down", map[string]ComponentCheck{
			"database": {Status: "down", Message: "check failed"},
		}, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineOverallStatus(tt.checks))
		})
	}
}
