// Package realtime keeps the live push connections of every active match:
// at most one connection per player slot, fan-out of match events, and
// cleanup when a connection closes or stops accepting writes.
package realtime

import (
	"log"
	"sync"
	"time"

	"naval-combat/models"
)

// Conn is the part of a websocket connection the coordinator needs.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const (
	DefaultWriteTimeout = 5 * time.Second
	DefaultQueueSize    = 32
)

// Coordinator owns the slot → connection mapping of every match. Writes to
// a connection happen on that connection's own goroutine; the coordinator
// lock is never held while writing.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[string]*session
	peers    map[Conn]*peer
	// retired holds connections whose writer may still be running after
	// they lost their slot; nothing else may write to them.
	retired map[Conn]struct{}

	writeTimeout time.Duration
	queueSize    int
}

type session struct {
	matchID string
	slots   [2]*peer
}

type peer struct {
	conn     Conn
	matchID  string
	playerID string
	slot     int
	send     chan models.OutboundMessage
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

func (p *peer) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

func NewCoordinator(writeTimeout time.Duration, queueSize int) *Coordinator {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Coordinator{
		sessions:     make(map[string]*session),
		peers:        make(map[Conn]*peer),
		retired:      make(map[Conn]struct{}),
		writeTimeout: writeTimeout,
		queueSize:    queueSize,
	}
}

// Attach binds conn to the slot of playerID in match m, replacing (and
// closing) whatever connection held that slot. It returns the slot, or
// false when playerID is not a participant; conn is then left unassociated.
func (c *Coordinator) Attach(m *models.Match, playerID string, conn Conn) (int, bool) {
	slot := m.Slot(playerID)
	if slot == 0 {
		log.Printf("⚠️ [SOCKET] user %s is not a participant of match %s, connection left unassociated", playerID, m.ID)
		return 0, false
	}

	p := &peer{
		conn:     conn,
		matchID:  m.ID,
		playerID: playerID,
		slot:     slot,
		send:     make(chan models.OutboundMessage, c.queueSize),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}

	c.mu.Lock()
	if cur, ok := c.peers[conn]; ok && cur.matchID == m.ID && cur.slot == slot {
		c.mu.Unlock()
		return slot, true
	}
	// the same connection may move to another match; drop its old slot
	prev, moved := c.peers[conn]
	if moved {
		c.removeLocked(prev)
	}
	sess, ok := c.sessions[m.ID]
	if !ok {
		sess = &session{matchID: m.ID}
		c.sessions[m.ID] = sess
	}
	replaced := sess.slots[slot-1]
	if replaced != nil {
		delete(c.peers, replaced.conn)
		c.retired[replaced.conn] = struct{}{}
	}
	sess.slots[slot-1] = p
	c.peers[conn] = p
	c.mu.Unlock()

	if moved {
		// one writer per connection at a time
		prev.stop()
		<-prev.exited
	}
	if replaced != nil {
		replaced.stop()
		_ = replaced.conn.Close()
		log.Printf("🔁 [SOCKET] match %s slot %d: replaced previous connection", m.ID, slot)
	}

	go c.writeLoop(p)
	log.Printf("✅ [SOCKET] user %s attached to match %s as slot %d", playerID, m.ID, slot)
	return slot, true
}

// Detach clears the slot owned by conn, if any, and tells the remaining
// player. The session is discarded once both slots are empty. It returns
// after the connection's writer has stopped, so the caller may release conn.
func (c *Coordinator) Detach(conn Conn) {
	c.mu.Lock()
	p, ok := c.peers[conn]
	var other *peer
	if ok {
		other = c.removeLocked(p)
	}
	delete(c.retired, conn)
	c.mu.Unlock()
	if !ok {
		return
	}

	p.stop()
	<-p.exited
	log.Printf("👋 [SOCKET] user %s left match %s (slot %d)", p.playerID, p.matchID, p.slot)
	c.announceDisconnect(p, other)
}

// Relay forwards a chat line from one player to the other slot of the match.
func (c *Coordinator) Relay(matchID, fromPlayerID string, msg models.OutboundMessage) {
	msg.PlayerID = fromPlayerID
	c.Broadcast(matchID, msg, fromPlayerID)
}

// Broadcast queues msg for every attached slot of the match except
// excludePlayerID.
func (c *Coordinator) Broadcast(matchID string, msg models.OutboundMessage, excludePlayerID string) {
	msg.MatchID = matchID
	for _, p := range c.peersOf(matchID) {
		if excludePlayerID != "" && p.playerID == excludePlayerID {
			continue
		}
		c.enqueue(p, msg)
	}
}

// SendTo queues msg for a single player. It reports whether the player had
// a live connection.
func (c *Coordinator) SendTo(matchID, playerID string, msg models.OutboundMessage) bool {
	msg.MatchID = matchID
	for _, p := range c.peersOf(matchID) {
		if p.playerID == playerID {
			return c.enqueue(p, msg)
		}
	}
	return false
}

// Reply answers the sender of an inbound message. Attached connections go
// through their queue; a connection that never had a slot has no writer
// goroutine, so it is written to directly. A connection that lost its slot
// gets nothing: it has been closed and its old writer may still be busy.
func (c *Coordinator) Reply(conn Conn, msg models.OutboundMessage) {
	c.mu.Lock()
	p, ok := c.peers[conn]
	_, retired := c.retired[conn]
	c.mu.Unlock()
	if ok {
		msg.MatchID = p.matchID
		c.enqueue(p, msg)
		return
	}
	if retired {
		log.Printf("⚠️ [SOCKET] dropping %s reply to a connection that lost its slot", msg.Type)
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("⚠️ [SOCKET] reply to unattached connection failed: %v", err)
	}
}

// SlotOf returns the match and slot conn is attached to.
func (c *Coordinator) SlotOf(conn Conn) (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.peers[conn]; ok {
		return p.matchID, p.slot
	}
	return "", 0
}

// Connected returns the player ids currently attached to a match, by slot.
func (c *Coordinator) Connected(matchID string) [2]string {
	var ids [2]string
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess, ok := c.sessions[matchID]; ok {
		for i, p := range sess.slots {
			if p != nil {
				ids[i] = p.playerID
			}
		}
	}
	return ids
}

// ActiveSessions is the number of matches with at least one live slot.
func (c *Coordinator) ActiveSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Shutdown closes every attached connection.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	peers := make([]*peer, 0, len(c.peers))
	for _, p := range c.peers {
		peers = append(peers, p)
	}
	c.sessions = make(map[string]*session)
	c.peers = make(map[Conn]*peer)
	for _, p := range peers {
		c.retired[p.conn] = struct{}{}
	}
	c.mu.Unlock()

	for _, p := range peers {
		p.stop()
		_ = p.conn.Close()
	}
}

func (c *Coordinator) peersOf(matchID string) []*peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[matchID]
	if !ok {
		return nil
	}
	out := make([]*peer, 0, 2)
	for _, p := range sess.slots {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// enqueue never blocks: a full queue means the client is not keeping up,
// and the slot is cleared like any other failed delivery.
func (c *Coordinator) enqueue(p *peer, msg models.OutboundMessage) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- msg:
		return true
	default:
		log.Printf("⚠️ [SOCKET] queue full for user %s in match %s, dropping connection", p.playerID, p.matchID)
		go c.evict(p)
		return false
	}
}

func (c *Coordinator) writeLoop(p *peer) {
	defer close(p.exited)
	for {
		select {
		case msg := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := p.conn.WriteJSON(msg); err != nil {
				log.Printf("❌ [SOCKET] write to user %s in match %s failed: %v", p.playerID, p.matchID, err)
				c.evict(p)
				return
			}
		case <-p.done:
			return
		}
	}
}

// evict clears a failed peer's slot and closes its connection, which ends
// the read loop that owns it.
func (c *Coordinator) evict(p *peer) {
	c.mu.Lock()
	var other *peer
	current, ok := c.peers[p.conn]
	if ok && current == p {
		other = c.removeLocked(p)
		c.retired[p.conn] = struct{}{}
	}
	c.mu.Unlock()

	p.stop()
	_ = p.conn.Close()
	if ok && current == p {
		c.announceDisconnect(p, other)
	}
}

func (c *Coordinator) announceDisconnect(gone, other *peer) {
	if other == nil {
		return
	}
	c.enqueue(other, models.OutboundMessage{
		Type:     models.MsgPlayerDisconnected,
		MatchID:  gone.matchID,
		Slot:     gone.slot,
		PlayerID: gone.playerID,
	})
}

// removeLocked detaches p and returns the peer in the other slot.
// c.mu must be held.
func (c *Coordinator) removeLocked(p *peer) *peer {
	if cur, ok := c.peers[p.conn]; ok && cur == p {
		delete(c.peers, p.conn)
	}
	sess, ok := c.sessions[p.matchID]
	if !ok {
		return nil
	}
	if sess.slots[p.slot-1] == p {
		sess.slots[p.slot-1] = nil
	}
	other := sess.slots[2-p.slot]
	if sess.slots[0] == nil && sess.slots[1] == nil {
		delete(c.sessions, p.matchID)
	}
	return other
}
