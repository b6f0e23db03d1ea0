package services

import (
	"context"
	"log"

	"naval-combat/models"
	"naval-combat/realtime"

	"github.com/gofiber/contrib/websocket"
)

// ServeSocket runs the read loop of one push connection for match :id.
// The user id is put in Locals by the socket auth middleware.
func (s *MatchService) ServeSocket(conn *websocket.Conn) {
	matchID := conn.Params("id")
	userID, _ := conn.Locals("user_id").(string)
	log.Printf("🔌 [SOCKET] user %s connected for match %s", userID, matchID)

	defer func() {
		s.Sessions.Detach(conn)
		_ = conn.Close()
	}()

	for {
		var msg models.InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("🔌 [SOCKET] user %s match %s read ended: %v", userID, matchID, err)
			return
		}
		s.HandleSocketMessage(context.Background(), matchID, userID, conn, msg)
	}
}

// HandleSocketMessage dispatches one inbound push message. It is the single
// entry point shared by the socket read loop and tests.
func (s *MatchService) HandleSocketMessage(ctx context.Context, matchID, userID string, conn realtime.Conn, msg models.InboundMessage) {
	switch msg.Type {
	case models.MsgJoin:
		s.socketJoin(ctx, matchID, userID, conn)
	case models.MsgShot:
		if msg.X == nil || msg.Y == nil {
			s.replyError(conn, KindInvalidInput, "x and y are required")
			return
		}
		if _, err := s.FireShot(ctx, matchID, userID, *msg.X, *msg.Y); err != nil {
			s.replyError(conn, KindOf(err), err.Error())
		}
	case models.MsgChat:
		s.socketChat(matchID, userID, conn, msg.Message)
	default:
		s.replyError(conn, KindInvalidInput, "unknown message type "+msg.Type)
	}
}

func (s *MatchService) socketJoin(ctx context.Context, matchID, userID string, conn realtime.Conn) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		s.replyError(conn, KindOf(err), err.Error())
		return
	}
	slot, ok := s.Sessions.Attach(m, userID, conn)
	if !ok {
		return
	}
	s.sendTo(m.ID, userID, models.OutboundMessage{
		Type:     models.MsgGameJoined,
		Slot:     slot,
		PlayerID: userID,
		Status:   m.Status,
	})
	if m.Status == models.MatchStatusInProgress && m.CurrentTurn == userID {
		s.sendTo(m.ID, userID, models.OutboundMessage{Type: models.MsgYourTurn})
	}
}

func (s *MatchService) socketChat(matchID, userID string, conn realtime.Conn, text string) {
	text = cleanText(text, maxChatLength)
	if text == "" {
		s.replyError(conn, KindInvalidInput, "message is required")
		return
	}
	attachedTo, slot := s.Sessions.SlotOf(conn)
	if slot == 0 || attachedTo != matchID {
		s.replyError(conn, KindInvalidState, "join the match before chatting")
		return
	}
	s.Sessions.Relay(matchID, userID, models.OutboundMessage{
		Type:    models.MsgChat,
		Slot:    slot,
		Message: text,
	})
}

func (s *MatchService) replyError(conn realtime.Conn, kind ErrorKind, message string) {
	s.Sessions.Reply(conn, models.OutboundMessage{
		Type:    models.MsgError,
		Kind:    string(kind),
		Message: message,
	})
}
