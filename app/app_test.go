package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artpar/ritan/adapters/clock"
	"github.com/artpar/ritan/adapters/hasher"
	"github.com/artpar/ritan/adapters/idgen"
	"github.com/artpar/ritan/adapters/memory"
	"github.com/artpar/ritan/adapters/random"
	"github.com/artpar/ritan/app"
	"github.com/artpar/ritan/domain/engine"
	"github.com/artpar/ritan/domain/key"
	"github.com/artpar/ritan/domain/quota"
	"github.com/artpar/ritan/domain/usage"
	"github.com/artpar/ritan/ports"
	"github.com/rs/zerolog"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

var errStore = errors.New("store unavailable")

type testStores struct {
	keys     *countingKeyStore
	tenants  *memory.TenantStore
	usage    *memory.UsageStore
	counters *memory.CounterStore
	recorder *testUsageRecorder
	clock    *clock.Fake
}

type testServices struct {
	keys      *app.KeyService
	auth      *app.AuthService
	admission *app.AdmissionService
	ledger    *app.LedgerService
	gateway   *app.GatewayService
}

func newTestServices(engines map[engine.Kind]ports.Engine, ceilings quota.Ceilings) (testServices, *testStores) {
	stores := &testStores{
		keys:     &countingKeyStore{KeyStore: memory.NewKeyStore()},
		tenants:  memory.NewTenantStore(),
		usage:    memory.NewUsageStore(),
		counters: memory.NewCounterStore(4),
		clock:    clock.NewFake(baseTime),
	}
	stores.recorder = &testUsageRecorder{store: stores.usage}

	logger := zerolog.Nop()
	h := hasher.SHA256{}
	ids := idgen.NewSequential("id-")

	admission := app.NewAdmissionService(app.AdmissionDeps{
		Tenants:  stores.tenants,
		Counters: stores.counters,
		Clock:    stores.clock,
		Logger:   logger,
	}, ceilings)
	ledger := app.NewLedgerService(app.LedgerDeps{
		Recorder:  stores.recorder,
		Store:     stores.usage,
		Admission: admission,
		Clock:     stores.clock,
	})

	svc := testServices{
		keys: app.NewKeyService(app.KeyDeps{
			Keys:    stores.keys,
			Tenants: stores.tenants,
			Random:  random.NewFake(),
			Hasher:  h,
			IDGen:   ids,
			Clock:   stores.clock,
			Logger:  logger,
		}),
		auth: app.NewAuthService(app.AuthDeps{
			Keys:    stores.keys,
			Tenants: stores.tenants,
			Hasher:  h,
			Clock:   stores.clock,
			Logger:  logger,
		}),
		admission: admission,
		ledger:    ledger,
		gateway: app.NewGatewayService(app.GatewayDeps{
			Engines:   engines,
			Admission: admission,
			Ledger:    ledger,
			Clock:     stores.clock,
			IDGen:     ids,
			Logger:    logger,
		}, nil),
	}
	return svc, stores
}

// -----------------------------------------------------------------------------
// Test doubles
// -----------------------------------------------------------------------------

// testUsageRecorder writes straight through to the store so reads see the
// record immediately.
type testUsageRecorder struct {
	mu      sync.Mutex
	store   *memory.UsageStore
	records []usage.Record
}

func (r *testUsageRecorder) Record(rec usage.Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	_ = r.store.RecordBatch(context.Background(), []usage.Record{rec})
}

func (r *testUsageRecorder) Flush(ctx context.Context) error {
	return nil
}

func (r *testUsageRecorder) Close() error {
	return nil
}

func (r *testUsageRecorder) Drain() []usage.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.records
	r.records = nil
	return records
}

// countingKeyStore counts digest lookups and can be made to fail.
type countingKeyStore struct {
	*memory.KeyStore
	lookups atomic.Int64
	fail    atomic.Bool
}

func (s *countingKeyStore) GetByDigest(ctx context.Context, digest string) (key.Key, error) {
	s.lookups.Add(1)
	if s.fail.Load() {
		return key.Key{}, errStore
	}
	return s.KeyStore.GetByDigest(ctx, digest)
}

// countingEngine counts invocations and returns a canned outcome.
type countingEngine struct {
	calls  atomic.Int64
	result ports.EngineResult
	err    error
}

func (e *countingEngine) Invoke(ctx context.Context, req engine.Request) (ports.EngineResult, error) {
	e.calls.Add(1)
	if e.err != nil {
		return ports.EngineResult{}, e.err
	}
	if e.result.Status == 0 && e.result.Data == nil {
		return ports.EngineResult{Status: 200, Data: map[string]string{"kind": string(req.Kind())}}, nil
	}
	return e.result, nil
}

// failingCounterStore fails every operation.
type failingCounterStore struct{}

func (failingCounterStore) IncrementIfBelow(context.Context, string, time.Time, int64) (int64, bool, error) {
	return 0, false, errStore
}

func (failingCounterStore) Get(context.Context, string, time.Time) (int64, error) {
	return 0, errStore
}

// issue creates a key for userID and returns the plaintext secret.
func issue(svc testServices, userID string) (app.IssuedKey, string) {
	issued, err := svc.keys.Issue(context.Background(), userID, "default")
	if err != nil {
		panic(err)
	}
	return issued, "Bearer " + issued.SecretKey
}
