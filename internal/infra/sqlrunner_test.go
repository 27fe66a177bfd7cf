package infra

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type recordingQuerier struct {
	queries []string
}

func (q *recordingQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.queries = append(q.queries, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (q *recordingQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.queries = append(q.queries, sql)
	return errorRow{err: pgx.ErrNoRows}
}

func (q *recordingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.queries = append(q.queries, sql)
	return nil, errors.New("not implemented")
}

func TestExtractMarker(t *testing.T) {
	marker, body, err := extractMarker("\n--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\nselect 1;\n")
	if err != nil {
		t.Fatalf("extractMarker error: %v", err)
	}
	if marker != "8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7" {
		t.Fatalf("unexpected marker %q", marker)
	}
	if strings.TrimSpace(body) != "select 1;" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, _, err := extractMarker("select 1;"); err == nil {
		t.Fatal("expected error for missing marker")
	}
	if _, _, err := extractMarker("   "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	q := &recordingQuerier{}
	runner := NewSQLRunner(q, zerolog.Nop())

	tag, err := runner.Exec(context.Background(), "--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3\nupdate jobs set status = 'x';")
	if err != nil {
		t.Fatalf("Exec error: %v", err)
	}
	if tag.RowsAffected() != 1 {
		t.Fatalf("expected 1 row affected, got %d", tag.RowsAffected())
	}
	if len(q.queries) != 1 || strings.Contains(q.queries[0], "--sql") {
		t.Fatalf("marker should be stripped, got %#v", q.queries)
	}

	if _, err := runner.Exec(context.Background(), "update jobs set status = 'x';"); err == nil {
		t.Fatal("expected marker error")
	}
	if len(q.queries) != 1 {
		t.Fatal("query without marker must not reach the database")
	}

	if err := runner.QueryRow(context.Background(), "select 1").Scan(); err == nil {
		t.Fatal("expected marker error from QueryRow")
	}
}

func TestSQLRunnerInTxUnsupported(t *testing.T) {
	runner := NewSQLRunner(&recordingQuerier{}, zerolog.Nop())
	err := runner.InTx(context.Background(), func(SQLExecutor) error { return nil })
	if !errors.Is(err, ErrTxUnsupported) {
		t.Fatalf("expected ErrTxUnsupported, got %v", err)
	}
}

func TestSQLRunnerAcquireWithoutPool(t *testing.T) {
	runner := NewSQLRunner(&recordingQuerier{}, zerolog.Nop())
	got, release, err := runner.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer release()
	if got != runner {
		t.Fatal("expected the same runner when not backed by a pool")
	}
}
