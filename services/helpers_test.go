package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"naval-combat/models"
	"naval-combat/realtime"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := NewGormStore(db)
	if err := store.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

type sentMessage struct {
	to      string // player id, or "*" for a broadcast
	exclude string
	msg     models.OutboundMessage
}

// fakeSessions records every push instead of writing to sockets.
type fakeSessions struct {
	mu       sync.Mutex
	sent     []sentMessage
	replies  []models.OutboundMessage
	attached map[realtime.Conn]attachment
}

type attachment struct {
	matchID  string
	playerID string
	slot     int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{attached: make(map[realtime.Conn]attachment)}
}

func (f *fakeSessions) Attach(m *models.Match, playerID string, conn realtime.Conn) (int, bool) {
	slot := m.Slot(playerID)
	if slot == 0 {
		return 0, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached[conn] = attachment{matchID: m.ID, playerID: playerID, slot: slot}
	return slot, true
}

func (f *fakeSessions) Detach(conn realtime.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attached, conn)
}

func (f *fakeSessions) Broadcast(matchID string, msg models.OutboundMessage, excludePlayerID string) {
	msg.MatchID = matchID
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: "*", exclude: excludePlayerID, msg: msg})
}

func (f *fakeSessions) Relay(matchID, fromPlayerID string, msg models.OutboundMessage) {
	msg.PlayerID = fromPlayerID
	f.Broadcast(matchID, msg, fromPlayerID)
}

func (f *fakeSessions) SendTo(matchID, playerID string, msg models.OutboundMessage) bool {
	msg.MatchID = matchID
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: playerID, msg: msg})
	return true
}

func (f *fakeSessions) Reply(conn realtime.Conn, msg models.OutboundMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, msg)
}

func (f *fakeSessions) SlotOf(conn realtime.Conn) (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attached[conn]
	if !ok {
		return "", 0
	}
	return a.matchID, a.slot
}

// of returns the messages of one type sent to a player (or "*").
func (f *fakeSessions) of(to, msgType string) []models.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OutboundMessage
	for _, s := range f.sent {
		if s.to == to && s.msg.Type == msgType {
			out = append(out, s.msg)
		}
	}
	return out
}

func (f *fakeSessions) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.replies = nil
}

// nopConn is a distinct map key per allocation.
type nopConn struct{ _ byte }

func (nopConn) WriteJSON(interface{}) error { return nil }
func (nopConn) SetWriteDeadline(time.Time) error { return nil }
func (nopConn) Close() error { return nil }

type testEnv struct {
	store    *GormStore
	sessions *fakeSessions
	stats    *StatsService
	svc      *MatchService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newTestStore(t)
	sessions := newFakeSessions()
	stats := NewStatsService(store)
	return &testEnv{
		store:    store,
		sessions: sessions,
		stats:    stats,
		svc:      NewMatchService(store, stats, sessions),
	}
}

const (
	alice = "user-alice"
	bob   = "user-bob"
	carol = "user-carol"
)

type placement struct {
	typ  models.ShipType
	x, y int
	o    models.Orientation
}

// standardFleet lays the five ships on rows 0..4 starting at column 0.
var standardFleet = []placement{
	{models.ShipCarrier, 0, 0, models.Horizontal},
	{models.ShipBattleship, 0, 1, models.Horizontal},
	{models.ShipCruiser, 0, 2, models.Horizontal},
	{models.ShipSubmarine, 0, 3, models.Horizontal},
	{models.ShipDestroyer, 0, 4, models.Horizontal},
}

// fleetCells lists every occupied cell of standardFleet.
func fleetCells() [][2]int {
	sizes := map[models.ShipType]int{
		models.ShipCarrier: 5, models.ShipBattleship: 4, models.ShipCruiser: 3,
		models.ShipSubmarine: 3, models.ShipDestroyer: 2,
	}
	var cells [][2]int
	for _, p := range standardFleet {
		for i := 0; i < sizes[p.typ]; i++ {
			cells = append(cells, [2]int{p.x + i, p.y})
		}
	}
	return cells
}

func (e *testEnv) placeFleet(t *testing.T, matchID, owner string) {
	t.Helper()
	ctx := context.Background()
	for _, p := range standardFleet {
		if _, err := e.svc.PlaceShip(ctx, matchID, owner, p.typ, p.x, p.y, p.o); err != nil {
			t.Fatalf("place %s for %s: %v", p.typ, owner, err)
		}
	}
}

// setupMatch returns a match alice created and bob joined.
func (e *testEnv) setupMatch(t *testing.T) *models.Match {
	t.Helper()
	ctx := context.Background()
	m, err := e.svc.StartMatch(ctx, alice, "Friday Night Fleet")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if m, err = e.svc.JoinMatch(ctx, m.ID, bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	return m
}

// startedMatch returns an in-progress match with both fleets placed.
func (e *testEnv) startedMatch(t *testing.T) *models.Match {
	t.Helper()
	ctx := context.Background()
	m := e.setupMatch(t)
	e.placeFleet(t, m.ID, alice)
	e.placeFleet(t, m.ID, bob)
	if _, err := e.svc.SetReady(ctx, m.ID, alice); err != nil {
		t.Fatalf("ready alice: %v", err)
	}
	m, err := e.svc.SetReady(ctx, m.ID, bob)
	if err != nil {
		t.Fatalf("ready bob: %v", err)
	}
	return m
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !IsKind(err, kind) {
		t.Fatalf("expected %s error, got %s: %v", kind, KindOf(err), err)
	}
}
