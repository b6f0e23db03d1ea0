package services

import (
	"context"
	"errors"
	"time"

	"naval-combat/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on GORM. Open the *gorm.DB with
// TranslateError enabled so unique violations surface as ErrDuplicateRecord.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// AutoMigrate creates or updates every table the engine uses.
func (s *GormStore) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.Match{},
		&models.Ship{},
		&models.Shot{},
		&models.Stats{},
		&models.Player{},
	)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{DB: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNoRecord
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateRecord
	}
	return err
}

// --- Matches ---

func (s *GormStore) CreateMatch(ctx context.Context, m *models.Match) error {
	return translate(s.DB.WithContext(ctx).Create(m).Error)
}

func (s *GormStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	var m models.Match
	if err := s.DB.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *GormStore) SaveMatch(ctx context.Context, m *models.Match) error {
	return translate(s.DB.WithContext(ctx).Save(m).Error)
}

func (s *GormStore) ListMatchesByStatus(ctx context.Context, status models.MatchStatus, limit int) ([]models.Match, error) {
	var matches []models.Match
	err := s.DB.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&matches).Error
	return matches, translate(err)
}

func (s *GormStore) ListMatchesForPlayer(ctx context.Context, userID string, limit int) ([]models.Match, error) {
	var matches []models.Match
	err := s.DB.WithContext(ctx).
		Where("player1_id = ? OR player2_id = ?", userID, userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&matches).Error
	return matches, translate(err)
}

func (s *GormStore) ListUnarchivedFinished(ctx context.Context, limit int) ([]models.Match, error) {
	var matches []models.Match
	err := s.DB.WithContext(ctx).
		Where("status = ? AND archived_at IS NULL", models.MatchStatusFinished).
		Order("finished_at ASC").
		Limit(limit).
		Find(&matches).Error
	return matches, translate(err)
}

func (s *GormStore) MarkArchived(ctx context.Context, matchID string, at time.Time) error {
	res := s.DB.WithContext(ctx).
		Model(&models.Match{}).
		Where("id = ?", matchID).
		UpdateColumn("archived_at", at)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoRecord
	}
	return nil
}

// --- Ships ---

func (s *GormStore) CreateShip(ctx context.Context, ship *models.Ship) error {
	return translate(s.DB.WithContext(ctx).Create(ship).Error)
}

func (s *GormStore) SaveShip(ctx context.Context, ship *models.Ship) error {
	return translate(s.DB.WithContext(ctx).
		Model(ship).
		Select("hit_count", "sunk", "updated_at").
		Updates(ship).Error)
}

func (s *GormStore) ListShips(ctx context.Context, matchID, ownerID string) ([]models.Ship, error) {
	var ships []models.Ship
	err := s.DB.WithContext(ctx).
		Where("match_id = ? AND owner_id = ?", matchID, ownerID).
		Order("created_at ASC").
		Find(&ships).Error
	return ships, translate(err)
}

func (s *GormStore) CountShips(ctx context.Context, matchID, ownerID string) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.Ship{}).
		Where("match_id = ? AND owner_id = ?", matchID, ownerID).
		Count(&count).Error
	return count, translate(err)
}

func (s *GormStore) CountUnsunkShips(ctx context.Context, matchID, ownerID string) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.Ship{}).
		Where("match_id = ? AND owner_id = ? AND sunk = ?", matchID, ownerID, false).
		Count(&count).Error
	return count, translate(err)
}

// --- Shots ---

func (s *GormStore) CreateShot(ctx context.Context, shot *models.Shot) error {
	return translate(s.DB.WithContext(ctx).Create(shot).Error)
}

func (s *GormStore) ListShots(ctx context.Context, matchID string) ([]models.Shot, error) {
	var shots []models.Shot
	err := s.DB.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC").
		Find(&shots).Error
	return shots, translate(err)
}

// --- Stats ---

func (s *GormStore) EnsureStats(ctx context.Context, userID string) error {
	return translate(s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Stats{UserID: userID}).Error)
}

func (s *GormStore) GetStats(ctx context.Context, userID string) (*models.Stats, error) {
	var st models.Stats
	if err := s.DB.WithContext(ctx).First(&st, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

// AddStats applies delta with column = column + n so concurrent writers
// never lose an increment.
func (s *GormStore) AddStats(ctx context.Context, userID string, delta models.StatsDelta) error {
	if delta.IsZero() {
		return nil
	}
	if err := s.EnsureStats(ctx, userID); err != nil {
		return err
	}
	return translate(s.DB.WithContext(ctx).
		Model(&models.Stats{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"games_played": gorm.Expr("games_played + ?", delta.GamesPlayed),
			"games_won":    gorm.Expr("games_won + ?", delta.GamesWon),
			"total_shots":  gorm.Expr("total_shots + ?", delta.TotalShots),
			"hits":         gorm.Expr("hits + ?", delta.Hits),
			"ships_sunk":   gorm.Expr("ships_sunk + ?", delta.ShipsSunk),
		}).Error)
}

// --- Players ---

func (s *GormStore) UpsertPlayers(ctx context.Context, players []models.Player) error {
	if len(players) == 0 {
		return nil
	}
	return translate(s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "profile_picture_url", "updated_at"}),
	}).Create(&players).Error)
}

func (s *GormStore) PlayerNames(ctx context.Context, externalIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(externalIDs))
	if len(externalIDs) == 0 {
		return names, nil
	}
	var players []models.Player
	if err := s.DB.WithContext(ctx).
		Where("external_user_id IN ?", externalIDs).
		Find(&players).Error; err != nil {
		return nil, translate(err)
	}
	for _, p := range players {
		names[p.ExternalUserID] = p.Username
	}
	return names, nil
}

func (s *GormStore) LatestPlayerUpdate(ctx context.Context) (time.Time, error) {
	var p models.Player
	err := s.DB.WithContext(ctx).Order("updated_at DESC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return p.UpdatedAt, nil
}
