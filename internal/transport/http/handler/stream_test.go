package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/signcast/notify/internal/application/delivery"
	"github.com/signcast/notify/internal/application/outbox"
	"github.com/signcast/notify/internal/application/publisher"
	"github.com/signcast/notify/internal/domain"
	"github.com/signcast/notify/internal/pkg/bus"
	"github.com/signcast/notify/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- shared device-auth helpers ---

// stubScreenAuth authenticates any token as the fixed screen.
type stubScreenAuth struct{ scr *domain.Screen }

func (s *stubScreenAuth) Authenticate(context.Context, string, string) (*domain.Screen, error) {
	return s.scr, nil
}

// serveAsDevice wraps h with middleware.DeviceAuth so the screen lands
// in the request context the same way it does in production.
func serveAsDevice(scr *domain.Screen, h http.Handler, w http.ResponseWriter, r *http.Request) {
	r.Header.Set("Authorization", "Bearer device-token")
	r.Header.Set(middleware.ScreenHeader, scr.ScreenID)
	middleware.DeviceAuth(&stubScreenAuth{scr: scr})(h).ServeHTTP(w, r)
}

// fakeOutbox is a hand-rolled outbox store for wiring a real delivery
// service under the stream handler.
type fakeOutbox struct {
	mu        sync.Mutex
	backlog   []domain.NotificationRecord
	delivered [][]string
}

func (f *fakeOutbox) FetchUndelivered(ctx context.Context, screenID string) ([]domain.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backlog, nil
}

func (f *fakeOutbox) MarkDelivered(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, ids)
	return nil
}

func (f *fakeOutbox) deliveredBatches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.delivered))
	copy(out, f.delivered)
	return out
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// --- Stream tests ---

func TestStream_NoScreenInContext(t *testing.T) {
	hub := bus.NewHub()
	svc := delivery.NewService(&fakeOutbox{}, hub, 4)
	h := NewStreamHandler(svc, time.Minute)

	r := httptest.NewRequest(http.MethodGet, "/v1/stream", nil)
	rr := httptest.NewRecorder()
	h.Stream(rr, r) // called directly, no device auth
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStream_ReplaysBacklogThenSignalsReady(t *testing.T) {
	ob := &fakeOutbox{backlog: []domain.NotificationRecord{
		{NotificationID: "n1", TargetScreenID: "scr1", Type: domain.TypeScheduleChange, Priority: 5, CreatedAt: time.Now().UTC()},
		{NotificationID: "n2", TargetScreenID: "scr1", Type: domain.TypePlaylistChange, Priority: 1, CreatedAt: time.Now().UTC()},
	}}
	hub := bus.NewHub()
	svc := delivery.NewService(ob, hub, 4)
	h := NewStreamHandler(svc, time.Minute)
	scr := &domain.Screen{ScreenID: "scr1", OrgID: "org1", Active: true}

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodGet, "/v1/stream", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		serveAsDevice(scr, http.HandlerFunc(h.Stream), rr, r)
		close(done)
	}()

	// The catch-up batch lands synchronously before realtime_ready.
	waitFor(t, func() bool { return len(ob.deliveredBatches()) == 1 }, "backlog never marked delivered")
	cancel()
	<-done

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, [][]string{{"n1", "n2"}}, ob.deliveredBatches())

	body := rr.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, `"screenId":"scr1"`)
	assert.Contains(t, body, "event: content_update")
	assert.Contains(t, body, `"id":"n1"`)
	assert.Contains(t, body, `"id":"n2"`)
	assert.Contains(t, body, "event: realtime_ready")
	assert.Contains(t, body, `"replayed":2`)
	// Replay order follows the backlog.
	assert.Less(t, strings.Index(body, `"id":"n1"`), strings.Index(body, `"id":"n2"`))
}

func TestStream_PushesLiveRecords(t *testing.T) {
	ob := &fakeOutbox{}
	hub := bus.NewHub()
	svc := delivery.NewService(ob, hub, 4)
	h := NewStreamHandler(svc, time.Minute)
	scr := &domain.Screen{ScreenID: "scr1", Active: true}

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodGet, "/v1/stream", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		serveAsDevice(scr, http.HandlerFunc(h.Stream), rr, r)
		close(done)
	}()

	waitFor(t, func() bool { return hub.ConnectionCount() == 1 }, "stream never subscribed")
	hub.Publish("scr1", domain.NotificationRecord{
		NotificationID: "live1", TargetScreenID: "scr1", Type: domain.TypeMediaChange, CreatedAt: time.Now().UTC(),
	})

	// The live push is marked delivered async after the write.
	waitFor(t, func() bool { return len(ob.deliveredBatches()) == 1 }, "live record never marked delivered")
	cancel()
	<-done

	body := rr.Body.String()
	assert.Contains(t, body, `"id":"live1"`)
	assert.Equal(t, [][]string{{"live1"}}, ob.deliveredBatches())
}

func TestStream_EndsWhenSubscriberKicked(t *testing.T) {
	ob := &fakeOutbox{}
	hub := bus.NewHub()
	svc := delivery.NewService(ob, hub, 4)
	h := NewStreamHandler(svc, time.Minute)
	scr := &domain.Screen{ScreenID: "scr1", Active: true}

	r := httptest.NewRequest(http.MethodGet, "/v1/stream", nil)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		serveAsDevice(scr, http.HandlerFunc(h.Stream), rr, r)
		close(done)
	}()

	waitFor(t, func() bool { return hub.ConnectionCount() == 1 }, "stream never subscribed")

	// Overflow the subscriber's buffer faster than the handler can
	// drain it; the hub closes the subscription and the handler must
	// end the response.
	for hub.ConnectionCount() > 0 {
		hub.Publish("scr1", domain.NotificationRecord{NotificationID: "flood", TargetScreenID: "scr1"})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not end after its subscription closed")
	}
}

// --- full path: publisher -> outbox -> hub -> streams ---

// memNotificationStore is an in-memory outbox table for wiring the
// real outbox service under the stream handler.
type memNotificationStore struct {
	mu   sync.Mutex
	recs []*domain.NotificationRecord
}

func (m *memNotificationStore) Put(_ context.Context, n *domain.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.recs = append(m.recs, &cp)
	return nil
}

func (m *memNotificationStore) QueryUndelivered(_ context.Context, screenID string) ([]domain.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.NotificationRecord
	for _, r := range m.recs {
		if r.TargetScreenID == screenID && r.DeliveredAt == nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memNotificationStore) MarkDelivered(_ context.Context, ids []string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		for _, r := range m.recs {
			if r.NotificationID == id && r.DeliveredAt == nil {
				ts := now
				r.DeliveredAt = &ts
			}
		}
	}
	return nil
}

func (m *memNotificationStore) Acknowledge(context.Context, string, []string, time.Time) error {
	return nil
}

func (m *memNotificationStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (m *memNotificationStore) undeliveredCount(screenID string) int {
	recs, _ := m.QueryUndelivered(context.Background(), screenID)
	return len(recs)
}

type fanoutSchedules struct{ byPlaylist map[string][]domain.Schedule }

func (s *fanoutSchedules) Get(context.Context, string) (*domain.Schedule, error) {
	return nil, domain.ErrNotFound
}
func (s *fanoutSchedules) ListActiveByPlaylist(_ context.Context, playlistID string) ([]domain.Schedule, error) {
	return s.byPlaylist[playlistID], nil
}

type fanoutPlaylists struct{}

func (fanoutPlaylists) GetItem(context.Context, string) (*domain.PlaylistItem, error) {
	return nil, domain.ErrNotFound
}
func (fanoutPlaylists) ListItemsByAsset(context.Context, string) ([]domain.PlaylistItem, error) {
	return nil, nil
}

type fanoutScreens struct{}

func (fanoutScreens) ListByOrg(context.Context, string) ([]domain.Screen, error) {
	return nil, nil
}

// A playlist with active schedules on two screens is renamed: the
// screen connected at the time gets the change pushed live, and the
// other receives its record via catch-up when it connects later.
func TestStream_PlaylistUpdate_LiveAndCatchUpAcrossScreens(t *testing.T) {
	store := &memNotificationStore{}
	hub := bus.NewHub()
	outboxSvc := outbox.NewService(store, hub, 24*time.Hour)
	pub := publisher.NewService(&fanoutSchedules{byPlaylist: map[string][]domain.Schedule{
		"pl1": {
			{ScheduleID: "sch1", ScreenID: "scrA", PlaylistID: "pl1", Active: true},
			{ScheduleID: "sch2", ScreenID: "scrB", PlaylistID: "pl1", Active: true},
		},
	}}, fanoutPlaylists{}, fanoutScreens{}, outboxSvc)
	deliverySvc := delivery.NewService(outboxSvc, hub, 8)
	h := NewStreamHandler(deliverySvc, time.Minute)

	// Screen A is already connected when the playlist changes.
	scrA := &domain.Screen{ScreenID: "scrA", OrgID: "org1", Active: true}
	ctxA, cancelA := context.WithCancel(context.Background())
	rA := httptest.NewRequest(http.MethodGet, "/v1/stream", nil).WithContext(ctxA)
	rrA := httptest.NewRecorder()
	doneA := make(chan struct{})
	go func() {
		serveAsDevice(scrA, http.HandlerFunc(h.Stream), rrA, rA)
		close(doneA)
	}()
	waitFor(t, func() bool { return hub.ConnectionCount() == 1 }, "screen A never subscribed")

	pub.OnEntityChanged(context.Background(), domain.EntityChange{
		EntityType: domain.EntityPlaylist, EntityID: "pl1", Op: domain.OpUpdate,
	})

	// One record per screen, both undelivered at creation; A's is then
	// pushed live and marked delivered async.
	waitFor(t, func() bool { return store.undeliveredCount("scrA") == 0 }, "screen A's record never marked delivered")
	require.Equal(t, 1, store.undeliveredCount("scrB"), "screen B's record must stay undelivered until it connects")
	cancelA()
	<-doneA

	bodyA := rrA.Body.String()
	assert.Contains(t, bodyA, "event: content_update")
	assert.Contains(t, bodyA, `"type":"playlist_change"`)
	assert.Contains(t, bodyA, `"playlistId":"pl1"`)

	// Screen B connects afterwards and catches up.
	scrB := &domain.Screen{ScreenID: "scrB", OrgID: "org1", Active: true}
	ctxB, cancelB := context.WithCancel(context.Background())
	rB := httptest.NewRequest(http.MethodGet, "/v1/stream", nil).WithContext(ctxB)
	rrB := httptest.NewRecorder()
	doneB := make(chan struct{})
	go func() {
		serveAsDevice(scrB, http.HandlerFunc(h.Stream), rrB, rB)
		close(doneB)
	}()
	waitFor(t, func() bool { return store.undeliveredCount("scrB") == 0 }, "screen B's backlog never marked delivered")
	cancelB()
	<-doneB

	bodyB := rrB.Body.String()
	assert.Contains(t, bodyB, "event: content_update")
	assert.Contains(t, bodyB, `"type":"playlist_change"`)
	assert.Contains(t, bodyB, `"playlistId":"pl1"`)
	assert.Contains(t, bodyB, `"replayed":1`)
}

func TestStream_HeartbeatTicks(t *testing.T) {
	ob := &fakeOutbox{}
	hub := bus.NewHub()
	svc := delivery.NewService(ob, hub, 4)
	h := NewStreamHandler(svc, 20*time.Millisecond)
	scr := &domain.Screen{ScreenID: "scr1", Active: true}

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodGet, "/v1/stream", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		serveAsDevice(scr, http.HandlerFunc(h.Stream), rr, r)
		close(done)
	}()

	time.Sleep(70 * time.Millisecond)
	cancel()
	<-done

	body := rr.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, `"seq":1`)
	require.GreaterOrEqual(t, strings.Count(body, "event: ping"), 2)
}
