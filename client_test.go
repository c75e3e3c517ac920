package sheetedit_test

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	sheetedit "github.com/ideamans/go-sheetedit"
	"github.com/ideamans/go-sheetedit/adapters/memory"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestClient(t *testing.T, store sheetedit.Adapter, clock *fakeClock, mutate func(*sheetedit.Config)) *sheetedit.Client {
	t.Helper()

	cfg := &sheetedit.Config{
		Sheet:         testSheet,
		Logger:        quietLogger(),
		RetryInterval: time.Millisecond,
	}
	if clock != nil {
		cfg.Clock = clock.Now
	}
	if mutate != nil {
		mutate(cfg)
	}

	client := sheetedit.New(store, cfg)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_Defaults(t *testing.T) {
	client := newTestClient(t, memory.New(), nil, nil)
	cfg := client.Config()

	if cfg.IdentityColumn != "영업자" {
		t.Errorf("IdentityColumn = %q", cfg.IdentityColumn)
	}
	if cfg.CacheTTL != 600*time.Second {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.Strategy != sheetedit.StrategyRows {
		t.Errorf("Strategy = %q", cfg.Strategy)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
}

func TestClient_SnapshotIsCached(t *testing.T) {
	store := newStore(commissionGrid())
	clock := newFakeClock()
	client := newTestClient(t, store, clock, nil)
	ctx := context.Background()

	first, err := client.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !first.FetchedAt.Equal(clock.Now()) {
		t.Errorf("FetchedAt = %v, want %v", first.FetchedAt, clock.Now())
	}

	clock.Advance(100 * time.Second)
	second, err := client.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("Snapshot() at T=100 should return the cached snapshot")
	}
	if store.Reads() != 1 {
		t.Errorf("reads at T=100 = %d, want 1", store.Reads())
	}

	clock.Advance(600 * time.Second)
	third, err := client.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Errorf("Snapshot() at T=700 should refetch")
	}
	if store.Reads() != 2 {
		t.Errorf("reads at T=700 = %d, want 2", store.Reads())
	}
}

func TestClient_ViewAndIdentities(t *testing.T) {
	client := newTestClient(t, newStore(commissionGrid()), nil, nil)
	ctx := context.Background()

	names, err := client.Identities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"김철수", "박민수", "이영희"}) {
		t.Errorf("Identities() = %v", names)
	}

	view, err := client.View(ctx, "박민수")
	if err != nil {
		t.Fatal(err)
	}
	if got := keys(view.Rows); !reflect.DeepEqual(got, []int{7}) {
		t.Errorf("View() keys = %v, want [7]", got)
	}

	empty, err := client.View(ctx, "없는사람")
	if err != nil || empty.Len() != 0 {
		t.Errorf("View() for an unknown identity = %v rows, err %v", empty.Len(), err)
	}

	sheetsList, err := client.Worksheets(ctx)
	if err != nil || !reflect.DeepEqual(sheetsList, []string{testSheet}) {
		t.Errorf("Worksheets() = %v, %v", sheetsList, err)
	}
}

func TestClient_IdentityColumnMissing(t *testing.T) {
	client := newTestClient(t, newStore(commissionGrid()), nil, func(c *sheetedit.Config) {
		c.IdentityColumn = "담당자"
	})

	_, err := client.View(context.Background(), "김철수")
	var se *sheetedit.SchemaError
	if !errors.As(err, &se) {
		t.Errorf("View() error = %v, want *SchemaError", err)
	}
}

func TestClient_SaveWithoutEditsIssuesNoWrites(t *testing.T) {
	store := newStore(commissionGrid())
	client := newTestClient(t, store, nil, nil)
	ctx := context.Background()

	view, err := client.View(ctx, "김철수")
	if err != nil {
		t.Fatal(err)
	}
	result, err := client.Save(ctx, view, view.Table.Clone())
	if err != nil {
		t.Fatal(err)
	}
	if result.Written || len(result.Updated) != 0 {
		t.Errorf("Save() result = %+v, want nothing written", result)
	}
	if store.Writes() != 0 {
		t.Errorf("writes = %d, want 0", store.Writes())
	}
	if store.Reads() != 1 {
		t.Errorf("reads = %d, want 1", store.Reads())
	}
}

func TestClient_SaveInvalidatesSnapshot(t *testing.T) {
	store := newStore(commissionGrid())
	client := newTestClient(t, store, nil, nil)
	ctx := context.Background()

	view, err := client.View(ctx, "김철수")
	if err != nil {
		t.Fatal(err)
	}
	candidate := view.Table.Clone()
	candidate.Rows[1].Set("수수료율입력", sheetedit.Number(2.5))

	result, err := client.Save(ctx, view, candidate)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !result.Written || !reflect.DeepEqual(result.Updated, []int{4}) {
		t.Errorf("Save() result = %+v", result)
	}

	after, err := client.View(ctx, "김철수")
	if err != nil {
		t.Fatal(err)
	}
	if store.Reads() != 2 {
		t.Errorf("reads = %d, want 2 (refetch after save)", store.Reads())
	}
	if f, _ := after.Rows[1].Get("수수료율입력").Float(); f != 2.5 {
		t.Errorf("saved value = %v, want 2.5", after.Rows[1].Get("수수료율입력"))
	}
}

func TestClient_FailedSaveInvalidatesSnapshot(t *testing.T) {
	store := newStore(commissionGrid())
	store.FailRow(4, errors.New("quota exceeded"))
	client := newTestClient(t, store, nil, nil)
	ctx := context.Background()

	view, _ := client.View(ctx, "김철수")
	candidate := view.Table.Clone()
	for _, r := range candidate.Rows {
		r.Set("고객명", sheetedit.Text("변경"))
	}

	_, err := client.Save(ctx, view, candidate)
	var we *sheetedit.WriteError
	if !errors.As(err, &we) || !reflect.DeepEqual(we.Rows, []int{4}) {
		t.Fatalf("Save() error = %v, want WriteError for row 4", err)
	}

	after, err := client.View(ctx, "김철수")
	if err != nil {
		t.Fatal(err)
	}
	if store.Reads() != 2 {
		t.Errorf("reads = %d, want 2", store.Reads())
	}
	if after.Rows[0].Get("고객명").String() != "변경" {
		t.Errorf("rows written before the failure should be visible after reload")
	}
	if after.Rows[1].Get("고객명").String() != "C유통" {
		t.Errorf("failed row should keep its old value")
	}
}

func TestClient_SaveRejectsForeignRows(t *testing.T) {
	store := newStore(commissionGrid())
	client := newTestClient(t, store, nil, nil)
	ctx := context.Background()

	view, _ := client.View(ctx, "김철수")
	candidate := view.Table.Clone()
	candidate.Rows[0].Key = 3

	if _, err := client.Save(ctx, view, candidate); !errors.Is(err, sheetedit.ErrUnknownRow) {
		t.Errorf("Save() error = %v, want ErrUnknownRow", err)
	}
	if store.Writes() != 0 {
		t.Errorf("writes = %d, want 0", store.Writes())
	}
}

func TestClient_RewriteStrategy(t *testing.T) {
	store := newStore(commissionGrid())
	client := newTestClient(t, store, nil, func(c *sheetedit.Config) {
		c.Strategy = sheetedit.StrategyRewrite
	})
	ctx := context.Background()

	view, _ := client.View(ctx, "박민수")
	candidate := view.Table.Clone()
	candidate.Rows = append(candidate.Rows, &sheetedit.Row{Values: map[string]sheetedit.Value{
		"영업자": sheetedit.Text("박민수"),
		"고객명": sheetedit.Text("G물류"),
	}})

	result, err := client.Save(ctx, view, candidate)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if result.Added != 1 || !result.Written || result.Strategy != sheetedit.StrategyRewrite {
		t.Errorf("Save() result = %+v", result)
	}

	after, err := client.View(ctx, "박민수")
	if err != nil {
		t.Fatal(err)
	}
	if after.Len() != 2 {
		t.Errorf("rows after rewrite = %d, want 2", after.Len())
	}
}

func TestClient_LoadErrorIsNotCached(t *testing.T) {
	store := memory.New()
	client := newTestClient(t, store, nil, nil)
	ctx := context.Background()

	_, err := client.Snapshot(ctx)
	var le *sheetedit.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("Snapshot() error = %v, want *LoadError", err)
	}
	// a missing sheet is not retried
	if store.Reads() != 1 {
		t.Errorf("reads = %d, want 1", store.Reads())
	}

	store.Put(testSheet, commissionGrid())
	if _, err := client.Snapshot(ctx); err != nil {
		t.Errorf("Snapshot() after the sheet appeared: %v", err)
	}
}

func TestClient_DialerIsCached(t *testing.T) {
	store := newStore(commissionGrid())
	var dials int32
	client := sheetedit.NewWithDialer(func(context.Context) (sheetedit.Adapter, error) {
		atomic.AddInt32(&dials, 1)
		return store, nil
	}, &sheetedit.Config{Sheet: testSheet, Logger: quietLogger()})
	defer client.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		client.Invalidate()
		if _, err := client.Snapshot(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if dials != 1 {
		t.Errorf("dials = %d, want 1", dials)
	}
	if store.Reads() != 3 {
		t.Errorf("reads = %d, want 3", store.Reads())
	}
}

func TestClient_DialFailure(t *testing.T) {
	boom := errors.New("invalid credentials")
	client := sheetedit.NewWithDialer(func(context.Context) (sheetedit.Adapter, error) {
		return nil, boom
	}, &sheetedit.Config{Sheet: testSheet, Logger: quietLogger()})
	defer client.Close()

	_, err := client.Snapshot(context.Background())
	var le *sheetedit.LoadError
	if !errors.As(err, &le) || !errors.Is(err, boom) {
		t.Errorf("Snapshot() error = %v, want LoadError wrapping the dial error", err)
	}
}

func TestClient_Closed(t *testing.T) {
	client := newTestClient(t, newStore(commissionGrid()), nil, nil)
	if err := client.Close(); err != nil {
		t.Fatal(err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := client.Snapshot(context.Background()); !errors.Is(err, sheetedit.ErrClosed) {
		t.Errorf("Snapshot() after Close error = %v, want ErrClosed", err)
	}
	if _, err := client.Save(context.Background(), &sheetedit.View{}, &sheetedit.Table{}); !errors.Is(err, sheetedit.ErrClosed) {
		t.Errorf("Save() after Close error = %v, want ErrClosed", err)
	}
}

func TestClient_BackgroundRefresh(t *testing.T) {
	store := newStore(commissionGrid())
	client := newTestClient(t, store, nil, func(c *sheetedit.Config) {
		c.RefreshInterval = 10 * time.Millisecond
	})

	deadline := time.Now().Add(2 * time.Second)
	for store.Reads() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Reads() < 2 {
		t.Errorf("background refresh did not reload, reads = %d", store.Reads())
	}
	if err := client.Close(); err != nil {
		t.Fatal(err)
	}
}

// flakyStore fails the first fails reads
type flakyStore struct {
	*memory.Adapter
	fails    int32
	attempts int32
}

func (s *flakyStore) ReadAllRows(ctx context.Context, sheet string) ([][]interface{}, error) {
	n := atomic.AddInt32(&s.attempts, 1)
	if n <= s.fails {
		return nil, errors.New("temporary failure")
	}
	return s.Adapter.ReadAllRows(ctx, sheet)
}

func TestClient_MaxRetries(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		fails        int32
		wantErr      bool
		wantAttempts int32
	}{
		{"default retries recover", 0, 2, false, 3},
		{"default gives up after three retries", 0, 10, true, 4},
		{"negative disables retries", -1, 1, true, 1},
		{"explicit count", 1, 1, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &flakyStore{Adapter: newStore(commissionGrid()), fails: tt.fails}
			client := newTestClient(t, store, nil, func(c *sheetedit.Config) {
				c.MaxRetries = tt.maxRetries
			})

			_, err := client.Snapshot(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Snapshot() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&store.attempts); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestClient_RewriteRefusesStaleView(t *testing.T) {
	store := newStore(commissionGrid())
	clock := newFakeClock()
	client := newTestClient(t, store, clock, func(c *sheetedit.Config) {
		c.Strategy = sheetedit.StrategyRewrite
	})
	ctx := context.Background()

	view, err := client.View(ctx, "김철수")
	if err != nil {
		t.Fatal(err)
	}
	candidate := view.Table.Clone()
	candidate.Rows[0].Set("수수료율입력", sheetedit.Number(9))

	clock.Advance(time.Minute)
	client.Invalidate()

	_, err = client.Save(ctx, view, candidate)
	var ce *sheetedit.ConflictError
	if !errors.As(err, &ce) || !errors.Is(err, sheetedit.ErrConflict) {
		t.Fatalf("Save() error = %v, want *ConflictError", err)
	}
	if store.Writes() != 0 {
		t.Errorf("writes = %d, want 0", store.Writes())
	}

	fresh, err := client.View(ctx, "김철수")
	if err != nil {
		t.Fatal(err)
	}
	candidate = fresh.Table.Clone()
	candidate.Rows[0].Set("수수료율입력", sheetedit.Number(9))
	if _, err := client.Save(ctx, fresh, candidate); err != nil {
		t.Errorf("Save() of a fresh view error = %v", err)
	}
}

func TestClient_ColumnRules(t *testing.T) {
	store := newStore(commissionGrid())
	client := newTestClient(t, store, nil, func(c *sheetedit.Config) {
		c.Columns = sheetedit.ColumnRules{{Name: "수수료율입력", Type: sheetedit.ColumnNumber, Required: true}}
	})
	ctx := context.Background()

	view, _ := client.View(ctx, "김철수")
	candidate := view.Table.Clone()
	candidate.Rows[1].Set("수수료율입력", sheetedit.Text("많이"))

	_, err := client.Save(ctx, view, candidate)
	var ve *sheetedit.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, sheetedit.ErrInvalidCell) {
		t.Fatalf("Save() error = %v, want *ValidationError", err)
	}
	if store.Writes() != 0 {
		t.Errorf("writes = %d, want 0", store.Writes())
	}
	if got := candidate.Rows[1].Get("수수료율입력"); !got.Equal(sheetedit.Text("많이")) {
		t.Errorf("Save() should not modify the candidate, got %v", got)
	}
}
