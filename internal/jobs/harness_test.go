package jobs

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aiinpocket/HomePage/internal/adapter/memstore"
	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/metrics"
	"github.com/aiinpocket/HomePage/internal/providers/sitegen"
	"github.com/aiinpocket/HomePage/internal/storage"
	"github.com/aiinpocket/HomePage/internal/worker"
)

type fakeGenerator struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req sitegen.Request) (string, error)
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(ctx context.Context, req sitegen.Request) (string, error) {
	g.calls.Add(1)
	if g.fn != nil {
		return g.fn(ctx, req)
	}
	return "<html><body><h1>" + req.Field("company_name") + "</h1><img src=\"{{ logo }}\"></body></html>", nil
}

type sentMessage struct {
	Recipient string
	Subject   string
	Body      string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{Recipient: recipient, Subject: subject, Body: body})
	return n.err
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

var credentialPattern = regexp.MustCompile(`class="credential">(\d+)<`)

// lastCredential returns the most recently mailed plaintext credential.
func (n *recordingNotifier) lastCredential(t *testing.T) string {
	t.Helper()
	msgs := n.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if m := credentialPattern.FindStringSubmatch(msgs[i].Body); m != nil {
			return m[1]
		}
	}
	t.Fatal("no credential was sent")
	return ""
}

type harness struct {
	store     *memstore.Store
	assets    *storage.FileStore
	generator *fakeGenerator
	notifier  *recordingNotifier
	metrics   *metrics.Metrics
	admission *worker.Admission
	pool      *worker.Pool
	runner    *Runner
	service   *Service
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		store:     memstore.New(),
		assets:    files,
		generator: &fakeGenerator{},
		notifier:  &recordingNotifier{},
		metrics:   metrics.NewMetrics(),
		admission: worker.NewAdmission(2),
	}
	opts := Options{
		Store:              h.store,
		Owners:             h.store,
		Assets:             files,
		Generator:          h.generator,
		Notifier:           h.notifier,
		Metrics:            h.metrics,
		Logger:             zerolog.Nop(),
		SiteURL:            "https://sites.example.com/",
		DefaultMaxJobs:     5,
		CredentialHashCost: bcrypt.MinCost,
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.runner = NewRunner(opts)
	h.pool = worker.NewPool(h.runner, h.admission, zerolog.Nop(), worker.WithPoolSize(4))
	h.service = NewService(opts, h.pool)
	require.NoError(t, h.pool.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.pool.Shutdown(ctx)
	})
	return h
}

func (h *harness) waitForStatus(t *testing.T, jobID string, want domain.JobStatus) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		j, err := h.store.GetByID(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 3*time.Second, 5*time.Millisecond, "job %s never reached %s", jobID, want)
	return job
}

func sampleInput() domain.InputSpec {
	return domain.InputSpec{
		TemplateID: "ocean",
		Fields: map[string]any{
			"company_name":  "Acme",
			"contact_email": "owner@example.com",
		},
	}
}

var logoPNG = []byte("\x89PNG\r\n\x1a\nlogo-bytes")
