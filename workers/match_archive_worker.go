package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"naval-combat/models"
	"naval-combat/services"

	"github.com/go-co-op/gocron/v2"
)

// Uploader stores an archive document and returns where it landed.
// *utils.R2Client implements it.
type Uploader interface {
	UploadJSON(ctx context.Context, key string, body []byte) (string, error)
}

// MatchArchive is the document written for every finished match.
type MatchArchive struct {
	Match        models.Match  `json:"match"`
	Player1Ships []models.Ship `json:"player1_ships"`
	Player2Ships []models.Ship `json:"player2_ships"`
	Shots        []models.Shot `json:"shots"`
	ArchivedAt   time.Time     `json:"archived_at"`
}

// MatchArchiveWorker copies finished matches to object storage on a fixed
// schedule and marks them archived.
type MatchArchiveWorker struct {
	store     services.Store
	uploader  Uploader
	interval  time.Duration
	batchSize int
	now       func() time.Time

	sched gocron.Scheduler
}

func NewMatchArchiveWorker(store services.Store, uploader Uploader, interval time.Duration) *MatchArchiveWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MatchArchiveWorker{
		store:     store,
		uploader:  uploader,
		interval:  interval,
		batchSize: 50,
		now:       time.Now,
	}
}

func (w *MatchArchiveWorker) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), w.interval)
			defer cancel()
			if _, err := w.RunOnce(ctx); err != nil {
				log.Printf("[ARCHIVE] ❌ run failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule archive job: %w", err)
	}

	w.sched = sched
	sched.Start()
	log.Printf("🗄️ [ARCHIVE] Match archive worker started (every %s)", w.interval)
	return nil
}

func (w *MatchArchiveWorker) Stop() {
	if w.sched == nil {
		return
	}
	if err := w.sched.Shutdown(); err != nil {
		log.Printf("[ARCHIVE] ⚠️ scheduler shutdown: %v", err)
	}
}

// RunOnce archives one batch of finished matches. A match that fails to
// upload is left for the next run.
func (w *MatchArchiveWorker) RunOnce(ctx context.Context) (int, error) {
	matches, err := w.store.ListUnarchivedFinished(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list finished matches: %w", err)
	}

	archived := 0
	for i := range matches {
		m := matches[i]
		if err := w.archive(ctx, &m); err != nil {
			log.Printf("[ARCHIVE] ⚠️ match %s: %v", m.ID, err)
			continue
		}
		archived++
	}
	if archived > 0 {
		log.Printf("[ARCHIVE] ✅ archived %d/%d match(es)", archived, len(matches))
	}
	return archived, nil
}

func (w *MatchArchiveWorker) archive(ctx context.Context, m *models.Match) error {
	now := w.now().UTC()
	doc := MatchArchive{Match: *m, ArchivedAt: now}

	var err error
	if doc.Player1Ships, err = w.store.ListShips(ctx, m.ID, m.Player1ID); err != nil {
		return fmt.Errorf("list ships: %w", err)
	}
	if m.Player2ID != "" {
		if doc.Player2Ships, err = w.store.ListShips(ctx, m.ID, m.Player2ID); err != nil {
			return fmt.Errorf("list ships: %w", err)
		}
	}
	if doc.Shots, err = w.store.ListShots(ctx, m.ID); err != nil {
		return fmt.Errorf("list shots: %w", err)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}

	finished := now
	if m.FinishedAt != nil {
		finished = m.FinishedAt.UTC()
	}
	key := ArchiveKey(m.ID, finished)
	url, err := w.uploader.UploadJSON(ctx, key, body)
	if err != nil {
		return err
	}
	if err := w.store.MarkArchived(ctx, m.ID, now); err != nil {
		return fmt.Errorf("mark archived: %w", err)
	}
	log.Printf("[ARCHIVE] 📦 match %s → %s", m.ID, url)
	return nil
}

// ArchiveKey is the object key of a match archive.
func ArchiveKey(matchID string, finishedAt time.Time) string {
	return fmt.Sprintf("matches/%s/%s.json", finishedAt.Format("2006-01-02"), matchID)
}
