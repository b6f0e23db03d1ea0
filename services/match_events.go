package services

import "naval-combat/models"

// Fan-out helpers. They run after the match lock is released; delivery
// problems are the coordinator's business and never reach the caller.

func (s *MatchService) sendTo(matchID, playerID string, msg models.OutboundMessage) {
	if s.Sessions == nil || playerID == "" {
		return
	}
	s.Sessions.SendTo(matchID, playerID, msg)
}

func (s *MatchService) broadcast(matchID string, msg models.OutboundMessage, excludePlayerID string) {
	if s.Sessions == nil {
		return
	}
	s.Sessions.Broadcast(matchID, msg, excludePlayerID)
}

// publishShot sends the shooter its shot_result, the defender the incoming
// shot, then either the defender's turn or game_over to both.
func (s *MatchService) publishShot(out *ShotOutcome) {
	m := out.Match
	x, y, hit := out.Shot.X, out.Shot.Y, out.Hit

	s.sendTo(m.ID, out.Shot.ShooterID, models.OutboundMessage{
		Type:     models.MsgShotResult,
		X:        &x,
		Y:        &y,
		Hit:      &hit,
		Sunk:     out.Sunk,
		ShipType: string(out.ShipType),
		Status:   m.Status,
	})
	s.sendTo(m.ID, out.Defender, models.OutboundMessage{
		Type:     models.MsgShot,
		PlayerID: out.Shot.ShooterID,
		X:        &x,
		Y:        &y,
		Hit:      &hit,
		Sunk:     out.Sunk,
		ShipType: string(out.ShipType),
		Status:   m.Status,
	})

	if out.Finished {
		s.broadcast(m.ID, models.OutboundMessage{
			Type:     models.MsgGameOver,
			Status:   m.Status,
			WinnerID: m.WinnerID,
			Reason:   m.FinishReason,
		}, "")
		return
	}
	s.sendTo(m.ID, m.CurrentTurn, models.OutboundMessage{Type: models.MsgYourTurn})
}
