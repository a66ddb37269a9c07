package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/push"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type countingGateway struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGateway) SendMulticast(_ context.Context, msg *push.Message) (*push.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return &push.Result{SuccessCount: len(msg.Tokens)}, nil
}

func (g *countingGateway) Name() string { return "counting" }

type harness struct {
	db         *gorm.DB
	store      *store.Store
	gateway    *countingGateway
	dispatcher *Dispatcher
	mu         sync.Mutex
	observed   []services.Outcome
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}, &models.NoiseRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	h := &harness{db: db, store: store.New(db), gateway: &countingGateway{}}
	opts.Hooks = append(opts.Hooks, services.HookFunc(func(_ context.Context, o services.Outcome) {
		h.mu.Lock()
		h.observed = append(h.observed, o)
		h.mu.Unlock()
	}))
	h.dispatcher = NewDispatcher(
		services.NewProfileService(h.store),
		services.NewStatisticsService(h.store),
		services.NewNotifierService(h.store, h.gateway),
		opts,
	)
	return h
}

func documentEvent(t *testing.T, collection, docID string, doc any) *Envelope {
	t.Helper()
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &Envelope{Type: TypeDocumentCreated, Collection: collection, DocID: docID, Data: b}
}

func TestDispatchEndToEnd(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	name := "Alice"

	o := h.dispatcher.Dispatch(ctx, &Envelope{Type: TypeAccountCreated, Account: &dto.AccountIdentity{UID: "u1", DisplayName: &name}})
	if o.Status != services.StatusOK {
		t.Fatalf("create: %+v", o)
	}

	h.db.Create(&models.NoiseRecord{ID: "n1", UserID: "u1"})
	o = h.dispatcher.Dispatch(ctx, documentEvent(t, models.CollectionNoiseRecords, "n1", map[string]any{"userId": "u1"}))
	if o.Status != services.StatusOK {
		t.Fatalf("record: %+v", o)
	}

	user, err := h.store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Nickname != "Alice" || user.Statistics.NoiseRecordCount != 1 || user.Storage.AudioFileCount != 1 {
		t.Fatalf("unexpected user after record: %+v", user)
	}

	o = h.dispatcher.Dispatch(ctx, &Envelope{Type: TypeAccountDeleted, Account: &dto.AccountIdentity{UID: "u1"}})
	if o.Status != services.StatusOK {
		t.Fatalf("delete: %+v", o)
	}

	if _, err := h.store.GetUser(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("user should be gone, got %v", err)
	}
	var records int64
	h.db.Model(&models.NoiseRecord{}).Count(&records)
	if records != 0 {
		t.Fatalf("noise record should be gone, %d left", records)
	}
}

func TestDispatchRoutesPosts(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	for _, uid := range []string{"author", "r1"} {
		u := models.NewUser(uid, nil, nil, nil, time.Now().UTC())
		if err := u.SetApartment(&models.ApartmentInfo{ApartmentID: "apt-1"}); err != nil {
			t.Fatalf("apartment: %v", err)
		}
		tok := "tok-" + uid
		u.FCMToken = &tok
		if err := h.store.SetUser(ctx, u); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	o := h.dispatcher.Dispatch(ctx, documentEvent(t, models.CollectionPosts, "p1", map[string]any{"userId": "author", "apartmentId": "apt-1"}))
	if o.Handler != services.HandlerPushNotification || o.Status != services.StatusOK {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if h.gateway.calls != 1 || o.Recipients != 1 {
		t.Fatalf("expected one call to one recipient, got %d calls %d recipients", h.gateway.calls, o.Recipients)
	}
}

func TestDispatchUnroutedCollection(t *testing.T) {
	h := newHarness(t, Options{})

	o := h.dispatcher.Dispatch(context.Background(), documentEvent(t, models.CollectionComments, "c1", map[string]any{"userId": "u1"}))
	if o.Handler != services.HandlerUnrouted || o.Status != services.StatusSkipped {
		t.Fatalf("expected unrouted skip got %+v", o)
	}
}

func TestDispatchUnknownType(t *testing.T) {
	h := newHarness(t, Options{})

	o := h.dispatcher.Dispatch(context.Background(), &Envelope{Type: "account.updated"})
	if o.Status != services.StatusSkipped {
		t.Fatalf("expected skipped got %+v", o)
	}
}

func TestDispatchInvalidEnvelope(t *testing.T) {
	h := newHarness(t, Options{})

	o := h.dispatcher.Dispatch(context.Background(), &Envelope{Type: TypeAccountDeleted})
	if !o.Failed() || o.Kind != services.KindInvalidEvent || o.Handler != services.HandlerDeleteProfile {
		t.Fatalf("expected invalid_event failure got %+v", o)
	}
}

func TestDispatchUndecodableSnapshot(t *testing.T) {
	h := newHarness(t, Options{})

	env := &Envelope{Type: TypeDocumentCreated, Collection: models.CollectionNoiseRecords, DocID: "n1", Data: json.RawMessage(`{"userId": 42}`)}
	o := h.dispatcher.Dispatch(context.Background(), env)
	if !o.Failed() || o.Kind != services.KindInvalidEvent || o.Handler != services.HandlerNoiseStatistics {
		t.Fatalf("expected invalid_event failure got %+v", o)
	}
}

func TestDispatchAssignsEventIDAndObserves(t *testing.T) {
	h := newHarness(t, Options{})

	o := h.dispatcher.Dispatch(context.Background(), &Envelope{Type: "noop"})
	if o.EventID == "" {
		t.Fatal("expected an event id to be assigned")
	}

	kept := h.dispatcher.Dispatch(context.Background(), &Envelope{ID: "evt-7", Type: "noop"})
	if kept.EventID != "evt-7" {
		t.Fatalf("expected caller id to be kept got %q", kept.EventID)
	}

	if len(h.observed) != 2 || h.observed[1].EventID != "evt-7" {
		t.Fatalf("expected hooks to see both outcomes, got %+v", h.observed)
	}
}

func TestDispatchCancelledBeforeAcquire(t *testing.T) {
	h := newHarness(t, Options{MaxInstances: 1})

	// Hold the only slot so Acquire has to wait on the cancelled context.
	if err := h.dispatcher.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer h.dispatcher.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := h.dispatcher.Dispatch(ctx, &Envelope{Type: TypeAccountCreated, Account: &dto.AccountIdentity{UID: "u1"}})
	if !o.Failed() || o.Kind != services.KindCancelled {
		t.Fatalf("expected cancelled failure got %+v", o)
	}
	if _, err := h.store.GetUser(context.Background(), "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("no profile should be written, got %v", err)
	}
}

func TestDispatchBoundsConcurrency(t *testing.T) {
	h := newHarness(t, Options{MaxInstances: 2})

	if !h.dispatcher.sem.TryAcquire(2) {
		t.Fatal("expected two free slots")
	}
	if h.dispatcher.sem.TryAcquire(1) {
		t.Fatal("third slot should not be available")
	}
	h.dispatcher.sem.Release(2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.dispatcher.Dispatch(context.Background(), &Envelope{Type: "noop"})
		}()
	}
	wg.Wait()

	if len(h.observed) != 8 {
		t.Fatalf("expected 8 observed outcomes got %d", len(h.observed))
	}
	if !h.dispatcher.sem.TryAcquire(2) {
		t.Fatal("every slot should be released after dispatch")
	}
}

func TestDispatchTimeoutCoversSlotWait(t *testing.T) {
	h := newHarness(t, Options{MaxInstances: 1, Timeout: 20 * time.Millisecond})

	if err := h.dispatcher.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer h.dispatcher.sem.Release(1)

	done := make(chan services.Outcome, 1)
	go func() {
		done <- h.dispatcher.Dispatch(context.Background(), &Envelope{Type: TypeAccountCreated, Account: &dto.AccountIdentity{UID: "u1"}})
	}()

	select {
	case o := <-done:
		if !o.Failed() || o.Kind != services.KindCancelled {
			t.Fatalf("expected cancelled failure got %+v", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch kept waiting for a slot past its timeout")
	}
}
