package models

import "time"

// MatchStatus is the lifecycle state of a match.
// waiting → setup → in_progress → finished, never re-entered.
type MatchStatus string

const (
	MatchStatusWaiting    MatchStatus = "waiting"
	MatchStatusSetup      MatchStatus = "setup"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusFinished   MatchStatus = "finished"
)

// FinishReason records how a finished match ended.
type FinishReason string

const (
	FinishReasonFleetDestroyed FinishReason = "fleet_destroyed"
	FinishReasonAbandoned      FinishReason = "abandoned"
)

// Match is one complete game session between two players.
// Owned exclusively by the match service; the session coordinator and the
// stats aggregator only read it.
type Match struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Title string `json:"title,omitempty"`
	Slug  string `gorm:"index" json:"slug,omitempty"`

	Player1ID string `gorm:"index;not null" json:"player1_id"`
	Player2ID string `gorm:"index" json:"player2_id,omitempty"` // empty until joined

	Status       MatchStatus  `gorm:"type:varchar(16);index;not null;default:'waiting'" json:"status"`
	Player1Ready bool         `gorm:"default:false" json:"player1_ready"`
	Player2Ready bool         `gorm:"default:false" json:"player2_ready"`
	CurrentTurn  string       `json:"current_turn,omitempty"` // player id, only while in_progress
	WinnerID     string       `json:"winner_id,omitempty"`    // only when finished
	FinishReason FinishReason `gorm:"type:varchar(32)" json:"finish_reason,omitempty"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`

	// Set by the archive worker once the match has been exported.
	ArchivedAt *time.Time `gorm:"index" json:"-"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsParticipant reports whether userID is player1 or player2.
func (m *Match) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return m.Player1ID == userID || m.Player2ID == userID
}

// Opponent returns the other participant, or "" when there is none yet.
func (m *Match) Opponent(userID string) string {
	switch userID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	}
	return ""
}

// Slot returns 1 or 2 for a participant and 0 otherwise.
func (m *Match) Slot(userID string) int {
	switch {
	case userID == "":
		return 0
	case userID == m.Player1ID:
		return 1
	case userID == m.Player2ID:
		return 2
	}
	return 0
}

// IsReady reports the ready flag of a participant.
func (m *Match) IsReady(userID string) bool {
	switch m.Slot(userID) {
	case 1:
		return m.Player1Ready
	case 2:
		return m.Player2Ready
	}
	return false
}

// MatchSummary is the list view of a match (open lobbies, my matches).
type MatchSummary struct {
	ID          string      `json:"id"`
	Title       string      `json:"title,omitempty"`
	Slug        string      `json:"slug,omitempty"`
	Status      MatchStatus `json:"status"`
	Player1ID   string      `json:"player1_id"`
	Player1Name string      `json:"player1_name,omitempty"`
	Player2ID   string      `json:"player2_id,omitempty"`
	WinnerID    string      `json:"winner_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
