package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aiinpocket/HomePage/internal/adapter/memstore"
	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/http/handlers"
	"github.com/aiinpocket/HomePage/internal/jobs"
	"github.com/aiinpocket/HomePage/internal/metrics"
	"github.com/aiinpocket/HomePage/internal/middleware"
	"github.com/aiinpocket/HomePage/internal/providers/sitegen"
	"github.com/aiinpocket/HomePage/internal/storage"
	"github.com/aiinpocket/HomePage/internal/worker"
)

type mailbox struct {
	mu     sync.Mutex
	bodies []string
}

func (m *mailbox) Notify(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, body)
	return nil
}

var credentialPattern = regexp.MustCompile(`class="credential">(\d+)<`)

func (m *mailbox) credential() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.bodies) - 1; i >= 0; i-- {
		if match := credentialPattern.FindStringSubmatch(m.bodies[i]); match != nil {
			return match[1]
		}
	}
	return ""
}

type testServer struct {
	handler http.Handler
	store   *memstore.Store
	mail    *mailbox
}

func newTestServer(t *testing.T, maxJobs int) *testServer {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	store := memstore.New()
	mail := &mailbox{}
	opts := jobs.Options{
		Store:              store,
		Owners:             store,
		Assets:             files,
		Generator:          sitegen.NewStaticGenerator(),
		Notifier:           mail,
		Metrics:            metrics.NewMetrics(),
		Logger:             zerolog.Nop(),
		SiteURL:            "https://sites.example.com",
		DefaultMaxJobs:     maxJobs,
		CredentialHashCost: bcrypt.MinCost,
	}
	admission := worker.NewAdmission(2)
	pool := worker.NewPool(jobs.NewRunner(opts), admission, zerolog.Nop())
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})

	app := handlers.NewApp(jobs.NewService(opts, pool), zerolog.Nop())
	app.Admission = admission
	app.Queue = pool
	return &testServer{
		handler: NewRouter(app, RouterOptions{}),
		store:   store,
		mail:    mail,
	}
}

func (s *testServer) do(t *testing.T, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(middleware.OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) waitFor(t *testing.T, jobID string, want domain.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := s.store.GetByID(context.Background(), jobID)
		return err == nil && job.Status == want
	}, 3*time.Second, 5*time.Millisecond)
}

func submitBody(draft bool) map[string]any {
	return map[string]any{
		"template_id": "ocean",
		"fields": map[string]any{
			"company_name":  "Acme",
			"contact_email": "owner@example.com",
		},
		"draft": draft,
	}
}

func decodeAccepted(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var out struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.JobID)
	return out.JobID
}

func TestSubmitGenerateAndDownloadOnce(t *testing.T) {
	srv := newTestServer(t, 5)
	jobID := decodeAccepted(t, srv.do(t, http.MethodPost, "/v1/jobs/", "owner-1", submitBody(false)))
	srv.waitFor(t, jobID, domain.JobStatusCompleted)

	rec := srv.do(t, http.MethodGet, "/v1/jobs/"+jobID, "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "completed", view["status"])
	assert.Equal(t, true, view["credential_issued"])

	password := srv.mail.credential()
	require.NotEmpty(t, password)

	rec = srv.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/download", "", map[string]string{"password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/download", "", map[string]string{"password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".zip")
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "index.html")

	rec = srv.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/download", "", map[string]string{"password": password})
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = srv.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/credential", "owner-1", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	fresh := srv.mail.credential()
	require.NotEmpty(t, fresh)
	rec = srv.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/download", "", map[string]string{"password": fresh})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDownloadRequiresPassword(t *testing.T) {
	srv := newTestServer(t, 5)
	rec := srv.do(t, http.MethodPost, "/v1/jobs/any/download", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuotaExceededReportsLimit(t *testing.T) {
	srv := newTestServer(t, 1)
	decodeAccepted(t, srv.do(t, http.MethodPost, "/v1/jobs/", "owner-1", submitBody(true)))

	rec := srv.do(t, http.MethodPost, "/v1/jobs/", "owner-1", submitBody(true))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.EqualValues(t, 1, out["limit"])
}

func TestInvalidSubmitIsRejected(t *testing.T) {
	srv := newTestServer(t, 5)
	rec := srv.do(t, http.MethodPost, "/v1/jobs/", "", map[string]any{"fields": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDraftDispatchAndArchive(t *testing.T) {
	srv := newTestServer(t, 5)
	jobID := decodeAccepted(t, srv.do(t, http.MethodPost, "/v1/jobs/", "owner-1", submitBody(true)))

	job, err := srv.store.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDraft, job.Status)

	assert.Equal(t, http.StatusAccepted, srv.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/dispatch", "owner-1", nil).Code)
	srv.waitFor(t, jobID, domain.JobStatusCompleted)
	assert.Equal(t, http.StatusConflict, srv.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/dispatch", "owner-1", nil).Code)

	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodDelete, "/v1/jobs/"+jobID, "someone-else", nil).Code)
	assert.Equal(t, http.StatusNoContent, srv.do(t, http.MethodDelete, "/v1/jobs/"+jobID, "owner-1", nil).Code)

	rec := srv.do(t, http.MethodGet, "/v1/jobs/", "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Items)
}

func TestListRequiresOwner(t *testing.T) {
	srv := newTestServer(t, 5)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/v1/jobs/", "", nil).Code)
}

func TestStatusUnknownJob(t *testing.T) {
	srv := newTestServer(t, 5)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/v1/jobs/missing", "", nil).Code)
}

func TestRegenerateRequiresTerminalJob(t *testing.T) {
	srv := newTestServer(t, 5)
	jobID := decodeAccepted(t, srv.do(t, http.MethodPost, "/v1/jobs/", "owner-1", submitBody(true)))
	assert.Equal(t, http.StatusConflict, srv.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/regenerate", "owner-1", nil).Code)
}

func TestMultipartSubmitStoresAssets(t *testing.T) {
	srv := newTestServer(t, 5)

	body := submitBody(false)
	body["asset_keys"] = []string{"logo"}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("payload", string(payload)))
	part, err := mw.CreateFormFile("logo", "logo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\nlogo-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	jobID := decodeAccepted(t, rec)
	srv.waitFor(t, jobID, domain.JobStatusCompleted)

	job, err := srv.store.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Contains(t, job.ResultDocument, "data:image/png;base64,")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, 5)
	decodeAccepted(t, srv.do(t, http.MethodPost, "/v1/jobs/", "", submitBody(true)))

	rec := srv.do(t, http.MethodGet, "/v1/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Counters  map[string]int `json:"counters"`
		Admission map[string]int `json:"admission"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Counters["submitted_jobs"])
	assert.Equal(t, 2, out.Admission["limit"])

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/v1/healthz", "", nil).Code)
}

func TestPreviewServesCompletedDocument(t *testing.T) {
	s := newTestServer(t, 5)
	jobID := decodeAccepted(t, s.do(t, http.MethodPost, "/v1/jobs", "", submitBody(false)))
	s.waitFor(t, jobID, domain.JobStatusCompleted)

	job, err := s.store.GetByID(context.Background(), jobID)
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/v1/preview/"+job.ResultID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, job.ResultDocument, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/preview/unknown-result", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/regenerate", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/preview/"+job.ResultID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
