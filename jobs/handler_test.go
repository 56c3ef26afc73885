package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEnqueuer struct {
	refreshes int
	prunes    int
	err       error
}

func (s *stubEnqueuer) EnqueueRatesRefresh(context.Context) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.refreshes++
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func (s *stubEnqueuer) EnqueueVersionsPrune(context.Context) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.prunes++
	return &asynq.TaskInfo{ID: "task-2", Queue: QueueDefault}, nil
}

func newJobsRouter(enqueuer Enqueuer) chi.Router {
	r := chi.NewRouter()
	NewHandler(nil, enqueuer, slog.Default()).MountRoutes(r)
	return r
}

func TestHandlerHealthWithoutInspector(t *testing.T) {
	rec := httptest.NewRecorder()
	newJobsRouter(&stubEnqueuer{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}

func TestHandlerTriggersTasks(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	router := newJobsRouter(enqueuer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/rates-refresh", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"type":"rates:refresh","task_id":"task-1"}`, rec.Body.String())
	assert.Equal(t, 1, enqueuer.refreshes)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/versions-prune", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, enqueuer.prunes)
}

func TestHandlerTriggerEnqueueFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	newJobsRouter(&stubEnqueuer{err: errors.New("redis down")}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/rates-refresh", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerTriggerWithoutClient(t *testing.T) {
	rec := httptest.NewRecorder()
	newJobsRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/versions-prune", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
