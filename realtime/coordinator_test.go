package realtime

import (
	"errors"
	"sync"
	"testing"
	"time"

	"naval-combat/models"
)

type testConn struct {
	name string
	out  chan models.OutboundMessage

	mu      sync.Mutex
	failing bool
	closed  bool
	block   chan struct{}
}

func newTestConn(name string) *testConn {
	return &testConn{name: name, out: make(chan models.OutboundMessage, 64)}
}

func (c *testConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	failing, block := c.failing, c.block
	c.mu.Unlock()
	if block != nil {
		<-block
	}
	if failing {
		return errors.New("broken pipe")
	}
	c.out <- v.(models.OutboundMessage)
	return nil
}

func (c *testConn) SetWriteDeadline(time.Time) error { return nil }

func (c *testConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *testConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *testConn) next(t *testing.T) models.OutboundMessage {
	t.Helper()
	select {
	case m := <-c.out:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no message", c.name)
	}
	return models.OutboundMessage{}
}

func (c *testConn) expectNone(t *testing.T) {
	t.Helper()
	select {
	case m := <-c.out:
		t.Fatalf("%s: unexpected message %+v", c.name, m)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var testMatch = &models.Match{ID: "m-1", Player1ID: "alice", Player2ID: "bob", Status: models.MatchStatusInProgress}

func TestAttachAssignsSlots(t *testing.T) {
	c := NewCoordinator(time.Second, 8)
	a, b, eve := newTestConn("alice"), newTestConn("bob"), newTestConn("eve")

	if slot, ok := c.Attach(testMatch, "alice", a); !ok || slot != 1 {
		t.Fatalf("alice slot = %d, %v", slot, ok)
	}
	if slot, ok := c.Attach(testMatch, "bob", b); !ok || slot != 2 {
		t.Fatalf("bob slot = %d, %v", slot, ok)
	}
	if _, ok := c.Attach(testMatch, "eve", eve); ok {
		t.Fatal("non participant attached")
	}
	if _, slot := c.SlotOf(eve); slot != 0 {
		t.Fatalf("eve slot = %d", slot)
	}
	if got := c.Connected("m-1"); got != [2]string{"alice", "bob"} {
		t.Fatalf("connected = %v", got)
	}
	// attaching the same connection again changes nothing
	if slot, ok := c.Attach(testMatch, "alice", a); !ok || slot != 1 {
		t.Fatalf("re-attach = %d, %v", slot, ok)
	}
	c.Shutdown()
}

func TestBroadcastAndSendTo(t *testing.T) {
	c := NewCoordinator(time.Second, 8)
	a, b := newTestConn("alice"), newTestConn("bob")
	c.Attach(testMatch, "alice", a)
	c.Attach(testMatch, "bob", b)
	defer c.Shutdown()

	c.Broadcast("m-1", models.OutboundMessage{Type: models.MsgGameStart}, "")
	if m := a.next(t); m.Type != models.MsgGameStart || m.MatchID != "m-1" {
		t.Fatalf("alice got %+v", m)
	}
	if m := b.next(t); m.Type != models.MsgGameStart {
		t.Fatalf("bob got %+v", m)
	}

	c.Relay("m-1", "alice", models.OutboundMessage{Type: models.MsgChat, Message: "hi"})
	if m := b.next(t); m.Type != models.MsgChat || m.PlayerID != "alice" {
		t.Fatalf("bob got %+v", m)
	}
	a.expectNone(t)

	if !c.SendTo("m-1", "bob", models.OutboundMessage{Type: models.MsgYourTurn}) {
		t.Fatal("send to bob failed")
	}
	if m := b.next(t); m.Type != models.MsgYourTurn {
		t.Fatalf("bob got %+v", m)
	}
	if c.SendTo("m-1", "eve", models.OutboundMessage{Type: models.MsgYourTurn}) {
		t.Fatal("send to absent player reported delivery")
	}
	if c.SendTo("other", "bob", models.OutboundMessage{Type: models.MsgYourTurn}) {
		t.Fatal("send to unknown match reported delivery")
	}
}

func TestReconnectReplacesSlot(t *testing.T) {
	c := NewCoordinator(time.Second, 8)
	old, fresh, b := newTestConn("old"), newTestConn("fresh"), newTestConn("bob")
	c.Attach(testMatch, "alice", old)
	c.Attach(testMatch, "bob", b)
	defer c.Shutdown()

	c.Attach(testMatch, "alice", fresh)
	if !old.isClosed() {
		t.Fatal("replaced connection not closed")
	}
	if _, slot := c.SlotOf(old); slot != 0 {
		t.Fatal("replaced connection still attached")
	}

	c.SendTo("m-1", "alice", models.OutboundMessage{Type: models.MsgYourTurn})
	if m := fresh.next(t); m.Type != models.MsgYourTurn {
		t.Fatalf("fresh got %+v", m)
	}
	old.expectNone(t)

	// its old writer may still be running, so replies are dropped
	c.Reply(old, models.OutboundMessage{Type: models.MsgError, Message: "not your turn"})
	old.expectNone(t)

	// the old socket's read loop ending must not evict the new one
	c.Detach(old)
	if got := c.Connected("m-1"); got[0] != "alice" {
		t.Fatalf("connected = %v", got)
	}
	b.expectNone(t)
}

func TestDetachNotifiesOpponent(t *testing.T) {
	c := NewCoordinator(time.Second, 8)
	a, b := newTestConn("alice"), newTestConn("bob")
	c.Attach(testMatch, "alice", a)
	c.Attach(testMatch, "bob", b)

	c.Detach(a)
	m := b.next(t)
	if m.Type != models.MsgPlayerDisconnected || m.Slot != 1 || m.PlayerID != "alice" {
		t.Fatalf("bob got %+v", m)
	}
	if c.ActiveSessions() != 1 {
		t.Fatalf("sessions = %d", c.ActiveSessions())
	}

	c.Detach(b)
	if c.ActiveSessions() != 0 {
		t.Fatalf("empty session kept, sessions = %d", c.ActiveSessions())
	}
	// detaching an unknown connection is harmless
	c.Detach(newTestConn("ghost"))
}

func TestFailedWriteEvicts(t *testing.T) {
	c := NewCoordinator(time.Second, 8)
	a, b := newTestConn("alice"), newTestConn("bob")
	c.Attach(testMatch, "alice", a)
	c.Attach(testMatch, "bob", b)
	defer c.Shutdown()

	b.mu.Lock()
	b.failing = true
	b.mu.Unlock()

	c.Broadcast("m-1", models.OutboundMessage{Type: models.MsgYourTurn}, "alice")
	waitFor(t, func() bool { _, slot := c.SlotOf(b); return slot == 0 })
	if !b.isClosed() {
		t.Fatal("failed connection not closed")
	}
	if m := a.next(t); m.Type != models.MsgPlayerDisconnected || m.PlayerID != "bob" {
		t.Fatalf("alice got %+v", m)
	}
}

func TestFullQueueEvicts(t *testing.T) {
	c := NewCoordinator(time.Second, 1)
	a, b := newTestConn("alice"), newTestConn("bob")
	c.Attach(testMatch, "alice", a)

	block := make(chan struct{})
	b.block = block
	c.Attach(testMatch, "bob", b)
	defer func() {
		close(block)
		c.Shutdown()
	}()

	// the writer holds one message, the queue one more; the rest overflow
	for i := 0; i < 4; i++ {
		c.SendTo("m-1", "bob", models.OutboundMessage{Type: models.MsgChat})
	}
	waitFor(t, func() bool { _, slot := c.SlotOf(b); return slot == 0 })
	if m := a.next(t); m.Type != models.MsgPlayerDisconnected {
		t.Fatalf("alice got %+v", m)
	}
}

func TestReplyToUnattached(t *testing.T) {
	c := NewCoordinator(time.Second, 8)
	conn := newTestConn("stranger")
	c.Reply(conn, models.OutboundMessage{Type: models.MsgError, Message: "join first"})
	if m := conn.next(t); m.Type != models.MsgError {
		t.Fatalf("got %+v", m)
	}
}

func TestReplyAfterEvictionDoesNotWrite(t *testing.T) {
	c := NewCoordinator(time.Second, 1)
	a, b := newTestConn("alice"), newTestConn("bob")
	c.Attach(testMatch, "alice", a)

	block := make(chan struct{})
	b.block = block
	c.Attach(testMatch, "bob", b)
	defer c.Shutdown()

	for i := 0; i < 4; i++ {
		c.SendTo("m-1", "bob", models.OutboundMessage{Type: models.MsgChat})
	}
	waitFor(t, func() bool { _, slot := c.SlotOf(b); return slot == 0 })

	// the evicted writer is still stuck in WriteJSON; a direct reply would
	// block behind it
	replied := make(chan struct{})
	go func() {
		c.Reply(b, models.OutboundMessage{Type: models.MsgError})
		close(replied)
	}()
	select {
	case <-replied:
	case <-time.After(time.Second):
		t.Fatal("reply wrote to an evicted connection")
	}
	close(block)

	// once the read loop ends the connection is forgotten
	c.Detach(b)
	c.mu.Lock()
	_, kept := c.retired[b]
	c.mu.Unlock()
	if kept {
		t.Fatal("detached connection still tracked")
	}
}
