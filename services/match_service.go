package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"naval-combat/fleet"
	"naval-combat/models"
	"naval-combat/realtime"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// SessionCoordinator is the realtime side the engine pushes events through.
// *realtime.Coordinator implements it.
type SessionCoordinator interface {
	Attach(m *models.Match, playerID string, conn realtime.Conn) (int, bool)
	Detach(conn realtime.Conn)
	Broadcast(matchID string, msg models.OutboundMessage, excludePlayerID string)
	Relay(matchID, fromPlayerID string, msg models.OutboundMessage)
	SendTo(matchID, playerID string, msg models.OutboundMessage) bool
	Reply(conn realtime.Conn, msg models.OutboundMessage)
	SlotOf(conn realtime.Conn) (string, int)
}

// MatchService is the authoritative state machine of every match. All
// mutations of one match run under that match's lock; reads do not lock.
type MatchService struct {
	Store    Store
	Stats    *StatsService
	Sessions SessionCoordinator

	locks *matchLocks
	now   func() time.Time
}

func NewMatchService(store Store, stats *StatsService, sessions SessionCoordinator) *MatchService {
	return &MatchService{
		Store:    store,
		Stats:    stats,
		Sessions: sessions,
		locks:    newMatchLocks(),
		now:      time.Now,
	}
}

// SweepIdleLocks drops per-match lock state nobody has used for maxIdle,
// such as the fired-cell cache of a match both players walked away from.
func (s *MatchService) SweepIdleLocks(maxIdle time.Duration) int {
	n := s.locks.sweepIdle(maxIdle)
	if n > 0 {
		log.Printf("🧹 [MATCH] dropped %d idle match lock(s)", n)
	}
	return n
}

// ShotOutcome is the result of a resolved shot.
type ShotOutcome struct {
	Match    *models.Match   `json:"match"`
	Shot     models.Shot     `json:"shot"`
	Hit      bool            `json:"hit"`
	Sunk     bool            `json:"sunk"`
	ShipType models.ShipType `json:"ship_type,omitempty"` // only revealed when sunk
	Finished bool            `json:"finished"`
	Defender string          `json:"-"`
}

// PlacementCheck is the answer to a validate-only placement request.
type PlacementCheck struct {
	Valid  bool         `json:"valid"`
	Reason string       `json:"reason,omitempty"`
	Cells  []fleet.Cell `json:"cells"`
}

// MatchDetail is a participant's view of a match. Opponent ships stay
// hidden until the match is finished.
type MatchDetail struct {
	Match                  *models.Match `json:"match"`
	MyShips                []models.Ship `json:"my_ships,omitempty"`
	MyShots                []models.Shot `json:"my_shots,omitempty"`
	OpponentShots          []models.Shot `json:"opponent_shots,omitempty"`
	OpponentShips          []models.Ship `json:"opponent_ships,omitempty"`
	MyShipsRemaining       int64         `json:"my_ships_remaining"`
	OpponentShipsRemaining int64         `json:"opponent_ships_remaining"`
}

func (s *MatchService) loadMatch(ctx context.Context, store Store, op, matchID string) (*models.Match, error) {
	if strings.TrimSpace(matchID) == "" {
		return nil, newError(KindInvalidInput, op, errors.New("match id is required"))
	}
	m, err := store.GetMatch(ctx, matchID)
	if errors.Is(err, ErrNoRecord) {
		return nil, newError(KindNotFound, op, ErrMatchNotFound)
	}
	if err != nil {
		return nil, storageError(op, err)
	}
	return m, nil
}

func requireParticipant(op string, m *models.Match, userID string) error {
	if !m.IsParticipant(userID) {
		return newError(KindUnauthorized, op, ErrNotParticipant)
	}
	return nil
}

func requireStatus(op string, m *models.Match, want models.MatchStatus) error {
	if m.Status != want {
		return errorf(KindInvalidState, op, "match is %s, expected %s", m.Status, want)
	}
	return nil
}

// StartMatch creates a waiting match owned by creatorID.
func (s *MatchService) StartMatch(ctx context.Context, creatorID, title string) (*models.Match, error) {
	const op = "start match"
	if creatorID == "" {
		return nil, newError(KindUnauthenticated, op, errors.New("missing user"))
	}
	title = cleanText(title, maxTitleLength)
	m := &models.Match{
		ID:        uuid.NewString(),
		Title:     title,
		Player1ID: creatorID,
		Status:    models.MatchStatusWaiting,
	}
	if title != "" {
		m.Slug = slug.Make(title)
	}
	if err := s.Store.CreateMatch(ctx, m); err != nil {
		return nil, storageError(op, err)
	}
	log.Printf("🆕 [MATCH] %s created by %s", m.ID, creatorID)
	return m, nil
}

// JoinMatch assigns joinerID as player2 and moves the match to setup.
func (s *MatchService) JoinMatch(ctx context.Context, matchID, joinerID string) (*models.Match, error) {
	const op = "join match"
	_, release := s.locks.lock(matchID)
	m, err := s.loadMatch(ctx, s.Store, op, matchID)
	if err == nil {
		switch {
		case m.Status != models.MatchStatusWaiting:
			err = newError(KindInvalidState, op, ErrNotJoinable)
		case joinerID == m.Player1ID:
			err = newError(KindConflict, op, ErrSelfJoin)
		default:
			m.Player2ID = joinerID
			m.Status = models.MatchStatusSetup
			if saveErr := s.Store.SaveMatch(ctx, m); saveErr != nil {
				err = storageError(op, saveErr)
			}
		}
	}
	release()
	if err != nil {
		return nil, err
	}

	log.Printf("🤝 [MATCH] %s joined by %s, now in setup", m.ID, joinerID)
	s.sendTo(m.ID, m.Player1ID, models.OutboundMessage{
		Type:     models.MsgPlayerJoined,
		Slot:     2,
		PlayerID: joinerID,
		Status:   m.Status,
	})
	return m, nil
}

// PlaceShip validates and persists one ship of ownerID's fleet.
func (s *MatchService) PlaceShip(ctx context.Context, matchID, ownerID string, shipType models.ShipType, x, y int, orientation models.Orientation) (*models.Ship, error) {
	const op = "place ship"
	_, release := s.locks.lock(matchID)
	defer release()

	m, err := s.loadMatch(ctx, s.Store, op, matchID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(op, m, ownerID); err != nil {
		return nil, err
	}
	if err := requireStatus(op, m, models.MatchStatusSetup); err != nil {
		return nil, err
	}
	if m.IsReady(ownerID) {
		return nil, newError(KindConflict, op, ErrAlreadyReady)
	}

	size, err := fleet.ShipSize(shipType)
	if err != nil {
		return nil, newError(KindInvalidInput, op, err)
	}
	if !fleet.ValidOrientation(orientation) {
		return nil, errorf(KindInvalidInput, op, "%v: %q", fleet.ErrInvalidOrientation, orientation)
	}

	existing, err := s.Store.ListShips(ctx, matchID, ownerID)
	if err != nil {
		return nil, storageError(op, err)
	}
	for _, sh := range existing {
		if sh.Type == shipType {
			return nil, errorf(KindConflict, op, "%v: %s", ErrDuplicateShip, shipType)
		}
	}
	if err := placementError(op, fleet.ValidatePlacement(existing, fleet.Placement{X: x, Y: y, Size: size, Orientation: orientation})); err != nil {
		return nil, err
	}

	ship := &models.Ship{
		ID:          uuid.NewString(),
		MatchID:     matchID,
		OwnerID:     ownerID,
		Type:        shipType,
		X:           x,
		Y:           y,
		Orientation: orientation,
		Size:        size,
	}
	if err := s.Store.CreateShip(ctx, ship); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			return nil, errorf(KindConflict, op, "%v: %s", ErrDuplicateShip, shipType)
		}
		return nil, storageError(op, err)
	}
	log.Printf("🚢 [MATCH] %s: %s placed %s at (%d,%d) %s", matchID, ownerID, shipType, x, y, orientation)
	return ship, nil
}

func placementError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fleet.ErrOverlap):
		return newError(KindConflict, op, err)
	default:
		return newError(KindInvalidInput, op, err)
	}
}

// ValidatePlacement previews a placement for ownerID without persisting it.
func (s *MatchService) ValidatePlacement(ctx context.Context, matchID, ownerID string, x, y, size int, orientation models.Orientation) (*PlacementCheck, error) {
	const op = "validate placement"
	m, err := s.loadMatch(ctx, s.Store, op, matchID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(op, m, ownerID); err != nil {
		return nil, err
	}
	if err := requireStatus(op, m, models.MatchStatusSetup); err != nil {
		return nil, err
	}
	if size < 2 || size > 5 {
		return nil, errorf(KindInvalidInput, op, "size must be between 2 and 5, got %d", size)
	}
	if !fleet.ValidOrientation(orientation) {
		return nil, errorf(KindInvalidInput, op, "%v: %q", fleet.ErrInvalidOrientation, orientation)
	}

	existing, err := s.Store.ListShips(ctx, matchID, ownerID)
	if err != nil {
		return nil, storageError(op, err)
	}
	candidate := fleet.Placement{X: x, Y: y, Size: size, Orientation: orientation}
	check := &PlacementCheck{Valid: true, Cells: candidate.Cells()}
	if err := fleet.ValidatePlacement(existing, candidate); err != nil {
		check.Valid = false
		switch {
		case errors.Is(err, fleet.ErrOverlap):
			check.Reason = "overlap"
		case errors.Is(err, fleet.ErrOutOfBounds):
			check.Reason = "out_of_bounds"
		default:
			check.Reason = err.Error()
		}
	}
	return check, nil
}

// SetReady marks playerID ready. When both players are ready the match
// starts and player1 has the first turn.
func (s *MatchService) SetReady(ctx context.Context, matchID, playerID string) (*models.Match, error) {
	const op = "set ready"
	_, release := s.locks.lock(matchID)
	m, started, err := s.setReadyLocked(ctx, op, matchID, playerID)
	release()
	if err != nil {
		return nil, err
	}

	if started {
		log.Printf("⚓ [MATCH] %s started, %s fires first", m.ID, m.Player1ID)
		s.broadcast(m.ID, models.OutboundMessage{Type: models.MsgGameStart, Status: m.Status, PlayerID: m.CurrentTurn}, "")
		s.sendTo(m.ID, m.CurrentTurn, models.OutboundMessage{Type: models.MsgYourTurn})
	}
	return m, nil
}

func (s *MatchService) setReadyLocked(ctx context.Context, op, matchID, playerID string) (*models.Match, bool, error) {
	m, err := s.loadMatch(ctx, s.Store, op, matchID)
	if err != nil {
		return nil, false, err
	}
	if err := requireParticipant(op, m, playerID); err != nil {
		return nil, false, err
	}
	if err := requireStatus(op, m, models.MatchStatusSetup); err != nil {
		return nil, false, err
	}
	if m.IsReady(playerID) {
		return m, false, nil
	}

	count, err := s.Store.CountShips(ctx, matchID, playerID)
	if err != nil {
		return nil, false, storageError(op, err)
	}
	if count != fleet.FleetSize {
		return nil, false, errorf(KindInvalidState, op, "%v, placed %d", ErrFleetIncomplete, count)
	}

	next := *m
	if next.Slot(playerID) == 1 {
		next.Player1Ready = true
	} else {
		next.Player2Ready = true
	}
	started := next.Player1Ready && next.Player2Ready
	if started {
		next.Status = models.MatchStatusInProgress
		next.CurrentTurn = next.Player1ID
	}
	if err := s.Store.SaveMatch(ctx, &next); err != nil {
		return nil, false, storageError(op, err)
	}
	return &next, started, nil
}

// BothReady reports whether both players have signalled ready.
func (s *MatchService) BothReady(ctx context.Context, matchID string) (bool, *models.Match, error) {
	m, err := s.loadMatch(ctx, s.Store, "check ready", matchID)
	if err != nil {
		return false, nil, err
	}
	return m.Player1Ready && m.Player2Ready, m, nil
}

// FireShot resolves shooterID's shot at (x,y) against the opponent's fleet.
// A cell can be fired at once per shooter; repeats are rejected.
func (s *MatchService) FireShot(ctx context.Context, matchID, shooterID string, x, y int) (*ShotOutcome, error) {
	const op = "fire shot"
	entry, release := s.locks.lock(matchID)
	out, err := s.fireShotLocked(ctx, op, entry, matchID, shooterID, x, y)
	if err == nil && out.Finished {
		entry.done = true
	}
	release()
	if err != nil {
		return nil, err
	}

	if s.Stats != nil {
		s.Stats.RecordShot(ctx, shooterID, out.Hit, out.Sunk)
		if out.Finished {
			s.Stats.RecordMatchEnd(ctx, out.Match)
		}
	}
	s.publishShot(out)
	return out, nil
}

func (s *MatchService) fireShotLocked(ctx context.Context, op string, entry *matchEntry, matchID, shooterID string, x, y int) (*ShotOutcome, error) {
	m, err := s.loadMatch(ctx, s.Store, op, matchID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(op, m, shooterID); err != nil {
		return nil, err
	}
	if err := requireStatus(op, m, models.MatchStatusInProgress); err != nil {
		return nil, err
	}
	if !fleet.InBounds(x, y) {
		return nil, errorf(KindInvalidInput, op, "%v: cell (%d,%d)", fleet.ErrOutOfBounds, x, y)
	}
	if m.CurrentTurn != shooterID {
		return nil, newError(KindConflict, op, ErrNotYourTurn)
	}

	fired, err := entry.firedCells(ctx, s.Store, matchID)
	if err != nil {
		return nil, storageError(op, err)
	}
	cell := fleet.Cell{X: x, Y: y}
	if _, dup := fired[shooterID][cell]; dup {
		return nil, errorf(KindConflict, op, "%v: (%d,%d)", ErrDuplicateShot, x, y)
	}

	defenderID := m.Opponent(shooterID)
	defender, err := s.Store.ListShips(ctx, matchID, defenderID)
	if err != nil {
		return nil, storageError(op, err)
	}

	res := fleet.ResolveShot(defender, x, y)
	destroyed := fleet.IsFleetDestroyed(defender)

	shot := models.Shot{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		ShooterID: shooterID,
		X:         x,
		Y:         y,
		Hit:       res.Hit,
		Sunk:      res.JustSunk,
	}
	out := &ShotOutcome{Hit: res.Hit, Sunk: res.JustSunk, Finished: destroyed, Defender: defenderID}
	if res.Ship != nil {
		id := res.Ship.ID
		shot.ShipID = &id
		if res.JustSunk {
			out.ShipType = res.Ship.Type
		}
	}

	next := *m
	if destroyed {
		now := s.now()
		next.Status = models.MatchStatusFinished
		next.WinnerID = shooterID
		next.FinishReason = models.FinishReasonFleetDestroyed
		next.FinishedAt = &now
		next.CurrentTurn = ""
	} else {
		next.CurrentTurn = defenderID
	}

	// a hit on an already sunk ship leaves the ship row untouched
	shipChanged := res.Ship != nil && (res.JustSunk || !res.Ship.Sunk)
	err = s.Store.Transaction(ctx, func(tx Store) error {
		if shipChanged {
			if err := tx.SaveShip(ctx, res.Ship); err != nil {
				return err
			}
		}
		if err := tx.CreateShot(ctx, &shot); err != nil {
			return err
		}
		return tx.SaveMatch(ctx, &next)
	})
	if errors.Is(err, ErrDuplicateRecord) {
		return nil, errorf(KindConflict, op, "%v: (%d,%d)", ErrDuplicateShot, x, y)
	}
	if err != nil {
		return nil, storageError(op, err)
	}

	addCell(fired, shooterID, cell)
	out.Shot = shot
	if res.Ship != nil && !res.Ship.Sunk && !destroyed {
		out.Shot.ShipID = nil
	}
	out.Match = &next
	if destroyed {
		log.Printf("🏁 [MATCH] %s finished, %s sank the last ship of %s", matchID, shooterID, defenderID)
	}
	return out, nil
}

// AbandonMatch ends the match; the other participant, if any, wins.
func (s *MatchService) AbandonMatch(ctx context.Context, matchID, requesterID string) (*models.Match, error) {
	const op = "abandon match"
	entry, release := s.locks.lock(matchID)
	m, err := s.abandonLocked(ctx, op, matchID, requesterID)
	if err == nil {
		entry.done = true
	}
	release()
	if err != nil {
		return nil, err
	}

	log.Printf("🏳️ [MATCH] %s abandoned by %s, winner=%q", m.ID, requesterID, m.WinnerID)
	if s.Stats != nil && m.Player2ID != "" {
		s.Stats.RecordMatchEnd(ctx, m)
	}
	s.broadcast(m.ID, models.OutboundMessage{
		Type:     models.MsgGameOver,
		Status:   m.Status,
		WinnerID: m.WinnerID,
		Reason:   m.FinishReason,
		PlayerID: requesterID,
	}, "")
	return m, nil
}

func (s *MatchService) abandonLocked(ctx context.Context, op, matchID, requesterID string) (*models.Match, error) {
	m, err := s.loadMatch(ctx, s.Store, op, matchID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(op, m, requesterID); err != nil {
		return nil, err
	}
	if m.Status == models.MatchStatusFinished {
		return nil, errorf(KindInvalidState, op, "match is already finished")
	}

	now := s.now()
	next := *m
	next.Status = models.MatchStatusFinished
	next.WinnerID = m.Opponent(requesterID)
	next.FinishReason = models.FinishReasonAbandoned
	next.FinishedAt = &now
	next.CurrentTurn = ""
	if err := s.Store.SaveMatch(ctx, &next); err != nil {
		return nil, storageError(op, err)
	}
	return &next, nil
}

// GetMatch returns the current persisted state of a match.
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	return s.loadMatch(ctx, s.Store, "get match", matchID)
}

// MatchDetail returns the match as seen by viewerID. Non-participants only
// get the match record.
func (s *MatchService) MatchDetail(ctx context.Context, matchID, viewerID string) (*MatchDetail, error) {
	const op = "match detail"
	m, err := s.loadMatch(ctx, s.Store, op, matchID)
	if err != nil {
		return nil, err
	}
	detail := &MatchDetail{Match: m}
	if !m.IsParticipant(viewerID) {
		return detail, nil
	}

	opponentID := m.Opponent(viewerID)
	var opponentShips []models.Ship
	if detail.MyShips, err = s.Store.ListShips(ctx, matchID, viewerID); err != nil {
		return nil, storageError(op, err)
	}
	if detail.MyShipsRemaining, err = s.Store.CountUnsunkShips(ctx, matchID, viewerID); err != nil {
		return nil, storageError(op, err)
	}
	if opponentID != "" {
		if detail.OpponentShipsRemaining, err = s.Store.CountUnsunkShips(ctx, matchID, opponentID); err != nil {
			return nil, storageError(op, err)
		}
		if opponentShips, err = s.Store.ListShips(ctx, matchID, opponentID); err != nil {
			return nil, storageError(op, err)
		}
		if m.Status == models.MatchStatusFinished {
			detail.OpponentShips = opponentShips
		}
	}

	shots, err := s.Store.ListShots(ctx, matchID)
	if err != nil {
		return nil, storageError(op, err)
	}
	sunk := make(map[string]bool, len(opponentShips))
	for _, ship := range opponentShips {
		sunk[ship.ID] = ship.Sunk
	}
	for _, sh := range shots {
		if sh.ShooterID == viewerID {
			// which hits share a ship is only shown once that ship is down
			if sh.ShipID != nil && !sunk[*sh.ShipID] && m.Status != models.MatchStatusFinished {
				sh.ShipID = nil
			}
			detail.MyShots = append(detail.MyShots, sh)
		} else {
			detail.OpponentShots = append(detail.OpponentShots, sh)
		}
	}
	return detail, nil
}

// ListOpenMatches returns waiting matches, newest first.
func (s *MatchService) ListOpenMatches(ctx context.Context, limit int) ([]models.MatchSummary, error) {
	matches, err := s.Store.ListMatchesByStatus(ctx, models.MatchStatusWaiting, clampLimit(limit))
	if err != nil {
		return nil, storageError("list open matches", err)
	}
	return s.summaries(ctx, matches)
}

// ListPlayerMatches returns every match userID takes part in.
func (s *MatchService) ListPlayerMatches(ctx context.Context, userID string, limit int) ([]models.MatchSummary, error) {
	matches, err := s.Store.ListMatchesForPlayer(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, storageError("list player matches", err)
	}
	return s.summaries(ctx, matches)
}

func (s *MatchService) summaries(ctx context.Context, matches []models.Match) ([]models.MatchSummary, error) {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Player1ID)
	}
	names, err := s.Store.PlayerNames(ctx, ids)
	if err != nil {
		// names are cosmetic
		log.Printf("⚠️ [MATCH] player name lookup failed: %v", err)
		names = map[string]string{}
	}

	out := make([]models.MatchSummary, len(matches))
	for i, m := range matches {
		out[i] = models.MatchSummary{
			ID:          m.ID,
			Title:       m.Title,
			Slug:        m.Slug,
			Status:      m.Status,
			Player1ID:   m.Player1ID,
			Player1Name: names[m.Player1ID],
			Player2ID:   m.Player2ID,
			WinnerID:    m.WinnerID,
			CreatedAt:   m.CreatedAt,
		}
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}
