package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"naval-combat/models"
	"naval-combat/services"

	"github.com/google/uuid"
)

// RemoteProfile matches one user of the profile sync service response.
type RemoteProfile struct {
	ExternalID        string    `json:"external_id"`
	Username          string    `json:"username"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	AccountStatus     string    `json:"account_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProfileChangesResponse is the top-level structure of the sync service response.
type ProfileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// PlayerSyncWorker mirrors player profiles from the sync service into the
// players table and makes sure every player has a stats row.
type PlayerSyncWorker struct {
	store        services.Store
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
}

func NewPlayerSyncWorker(store services.Store, syncServiceBaseURL, endpointPath, serviceToken string) *PlayerSyncWorker {
	return &PlayerSyncWorker{
		store:        store,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *PlayerSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Player Sync Worker (sync-service → players)…")
	go w.run(ctx)
}

func (w *PlayerSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		log.Printf("[SYNC] ⚠️ Initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				log.Printf("[SYNC] ❌ Sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Player Sync Worker stopped")
			return
		}
	}
}

// SyncOnce pulls every profile changed since the newest local player and
// returns how many were upserted.
func (w *PlayerSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since, err := w.store.LatestPlayerUpdate(ctx)
	if err != nil {
		return 0, fmt.Errorf("read last sync time: %w", err)
	}
	if since.IsZero() {
		since = time.Unix(0, 0)
	}

	profiles, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	players := make([]models.Player, 0, len(profiles))
	for _, p := range profiles {
		if p.ExternalID == "" {
			continue
		}
		players = append(players, models.Player{
			ID:                uuid.NewString(),
			ExternalUserID:    p.ExternalID,
			Username:          p.Username,
			ProfilePictureURL: p.ProfilePictureURL,
			CreatedAt:         p.CreatedAt,
			UpdatedAt:         p.UpdatedAt,
		})
	}

	if err := w.store.UpsertPlayers(ctx, players); err != nil {
		return 0, fmt.Errorf("upsert players: %w", err)
	}

	for _, p := range players {
		if err := w.store.EnsureStats(ctx, p.ExternalUserID); err != nil {
			log.Printf("[SYNC] ⚠️ Failed to ensure stats for %s: %v", p.ExternalUserID, err)
		}
	}

	log.Printf("[SYNC] ✅ Synced %d player(s) since %s", len(players), since.UTC().Format(time.RFC3339))
	return len(players), nil
}

func (w *PlayerSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base sync service URL '%s': %w", w.baseURL, err)
	}

	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service non-200 response: %d: %s", resp.StatusCode, string(body))
	}

	var response ProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return response.Users, nil
}
