package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/services"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

type groupKey struct {
	correlationID string
	sequence      int
}

// Store is the in-memory queue and primary database used by tests and the
// in-memory module. Claim semantics match the postgres adapter.
type Store struct {
	mu sync.RWMutex

	items  map[string]entities.QueueItem
	groups map[groupKey]string
	rows   map[string]map[string]map[string]any

	logger *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		items:  make(map[string]entities.QueueItem),
		groups: make(map[groupKey]string),
		rows:   make(map[string]map[string]map[string]any),
		logger: application.ResolveLogger(logger),
	}
}

func (s *Store) Enqueue(_ context.Context, correlationID string, items []entities.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Everything is checked before the first write so a rejected batch
	// leaves no rows behind.
	batchIDs := make(map[string]struct{}, len(items))
	batchKeys := make(map[groupKey]struct{}, len(items))
	for _, item := range items {
		if item.CorrelationID != correlationID {
			return domainerrors.NewValidationError("correlation_id", "item %s belongs to %q", item.ID, item.CorrelationID)
		}
		key := groupKey{correlationID: correlationID, sequence: item.Sequence}
		if _, exists := s.items[item.ID]; exists {
			return fmt.Errorf("queue item %s already exists", item.ID)
		}
		if _, exists := batchIDs[item.ID]; exists {
			return fmt.Errorf("queue item %s repeated in batch", item.ID)
		}
		if _, exists := s.groups[key]; exists {
			return domainerrors.NewValidationError("sequence", "sequence %d already queued for %s", item.Sequence, correlationID)
		}
		if _, exists := batchKeys[key]; exists {
			return domainerrors.NewValidationError("sequence", "sequence %d repeated in batch", item.Sequence)
		}
		batchIDs[item.ID] = struct{}{}
		batchKeys[key] = struct{}{}
	}

	for _, item := range items {
		s.items[item.ID] = cloneItem(item)
		s.groups[groupKey{correlationID: correlationID, sequence: item.Sequence}] = item.ID
	}

	s.logger.Debug("queue items stored",
		"event", "sync_queue_items_stored",
		"module", application.ModuleName,
		"layer", "adapter",
		"correlation_id", correlationID,
		"count", len(items),
	)
	return nil
}

func (s *Store) ClaimBatch(_ context.Context, workerID string, limit int, now time.Time) ([]entities.QueueItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]entities.QueueItem, 0)
	for _, item := range s.items {
		if item.EligibleAt(now) && !s.blockedLocked(item, now) {
			candidates = append(candidates, item)
		}
	}
	services.SortForProcessing(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	claimed := make([]entities.QueueItem, 0, len(candidates))
	for _, item := range candidates {
		claimedAt := now
		item.Status = entities.ItemStatusProcessing
		item.ClaimedAt = &claimedAt
		item.ClaimedBy = workerID
		item.UpdatedAt = now
		s.items[item.ID] = item
		claimed = append(claimed, cloneItem(item))
	}
	return claimed, nil
}

// blockedLocked reports whether an earlier item of the group prevents item
// from being claimed at now.
func (s *Store) blockedLocked(item entities.QueueItem, now time.Time) bool {
	for seq := 1; seq < item.Sequence; seq++ {
		id, ok := s.groups[groupKey{correlationID: item.CorrelationID, sequence: seq}]
		if !ok {
			continue
		}
		earlier := s.items[id]
		switch earlier.Status {
		case entities.ItemStatusProcessing, entities.ItemStatusFailed:
			return true
		case entities.ItemStatusPending:
			if !earlier.EligibleAt(now) {
				return true
			}
		}
	}
	return false
}

func (s *Store) MarkCompleted(_ context.Context, itemID string, workerID string, now time.Time) error {
	return s.transition(itemID, func(item *entities.QueueItem) (bool, error) {
		if changed, err := claimHeld(item, workerID, entities.ItemStatusCompleted); !changed {
			return false, err
		}
		processedAt := now.UTC()
		item.Status = entities.ItemStatusCompleted
		item.LastError = ""
		item.ProcessedAt = &processedAt
		item.ClaimedAt = nil
		item.ClaimedBy = ""
		item.UpdatedAt = processedAt
		return true, nil
	})
}

func (s *Store) MarkFailed(_ context.Context, itemID string, workerID string, lastError string, now time.Time) error {
	return s.transition(itemID, func(item *entities.QueueItem) (bool, error) {
		if changed, err := claimHeld(item, workerID, entities.ItemStatusFailed); !changed {
			return false, err
		}
		processedAt := now.UTC()
		item.Status = entities.ItemStatusFailed
		item.AttemptCount++
		item.LastError = lastError
		item.ProcessedAt = &processedAt
		item.ClaimedAt = nil
		item.ClaimedBy = ""
		item.UpdatedAt = processedAt
		return true, nil
	})
}

func (s *Store) MarkRetry(_ context.Context, itemID string, workerID string, lastError string, nextEligibleAt time.Time, now time.Time) error {
	return s.transition(itemID, func(item *entities.QueueItem) (bool, error) {
		if changed, err := claimHeld(item, workerID, entities.ItemStatusPending); !changed {
			return false, err
		}
		item.Status = entities.ItemStatusPending
		item.AttemptCount++
		item.LastError = lastError
		item.NextEligibleAt = nextEligibleAt.UTC()
		item.ClaimedAt = nil
		item.ClaimedBy = ""
		item.UpdatedAt = now.UTC()
		return true, nil
	})
}

func (s *Store) ReleaseClaim(_ context.Context, itemID string, workerID string, now time.Time) error {
	return s.transition(itemID, func(item *entities.QueueItem) (bool, error) {
		if changed, err := claimHeld(item, workerID, entities.ItemStatusPending); !changed {
			return false, err
		}
		item.Status = entities.ItemStatusPending
		item.ClaimedAt = nil
		item.ClaimedBy = ""
		item.UpdatedAt = now.UTC()
		return true, nil
	})
}

func (s *Store) SaveCheckpoint(_ context.Context, itemID string, workerID string, checkpoint entities.Checkpoint, now time.Time) error {
	return s.transition(itemID, func(item *entities.QueueItem) (bool, error) {
		if changed, err := claimHeld(item, workerID, ""); !changed {
			if err == nil {
				err = domainerrors.ErrInvalidTransition
			}
			return false, err
		}
		item.Checkpoint = cloneCheckpoint(checkpoint)
		item.UpdatedAt = now.UTC()
		return true, nil
	})
}

// claimHeld reports whether workerID still owns the processing claim on
// item. An item already at target is left alone so repeated calls are no-ops.
// A claim that was requeued or taken over by another worker is lost.
func claimHeld(item *entities.QueueItem, workerID string, target entities.ItemStatus) (bool, error) {
	switch {
	case item.Status == target:
		return false, nil
	case item.Status == entities.ItemStatusProcessing && item.ClaimedBy == workerID:
		return true, nil
	case item.Status == entities.ItemStatusProcessing:
		return false, fmt.Errorf("item %s now held by %s: %w", item.ID, item.ClaimedBy, domainerrors.ErrClaimLost)
	case item.Status == entities.ItemStatusPending:
		return false, fmt.Errorf("item %s was requeued: %w", item.ID, domainerrors.ErrClaimLost)
	default:
		return false, domainerrors.ErrInvalidTransition
	}
}

func (s *Store) transition(itemID string, apply func(item *entities.QueueItem) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return domainerrors.ErrItemNotFound
	}
	changed, err := apply(&item)
	if err != nil {
		return err
	}
	if changed {
		s.items[itemID] = item
	}
	return nil
}

func (s *Store) CountUnsettledPredecessors(_ context.Context, correlationID string, sequence int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for seq := 1; seq < sequence; seq++ {
		id, ok := s.groups[groupKey{correlationID: correlationID, sequence: seq}]
		if !ok {
			continue
		}
		if s.items[id].Status != entities.ItemStatusCompleted {
			count++
		}
	}
	return count, nil
}

func (s *Store) GetItem(_ context.Context, itemID string) (entities.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return entities.QueueItem{}, domainerrors.ErrItemNotFound
	}
	return cloneItem(item), nil
}

func (s *Store) ResetFailed(_ context.Context, itemID string, now time.Time) (entities.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return entities.QueueItem{}, domainerrors.ErrItemNotFound
	}
	if item.Status != entities.ItemStatusFailed {
		return entities.QueueItem{}, domainerrors.ErrItemNotFailed
	}
	now = now.UTC()
	item.Status = entities.ItemStatusPending
	item.AttemptCount = 0
	item.NextEligibleAt = now
	item.ProcessedAt = nil
	item.FlaggedAt = nil
	item.Checkpoint = item.Checkpoint.Rewound()
	item.UpdatedAt = now
	s.items[itemID] = item
	return cloneItem(item), nil
}

func (s *Store) HasPending(_ context.Context, now time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.EligibleAt(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) StatusCounts(_ context.Context, now time.Time) (ports.QueueStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var status ports.QueueStatus
	var oldest time.Time
	for _, item := range s.items {
		switch item.Status {
		case entities.ItemStatusPending:
			status.Pending++
			if oldest.IsZero() || item.CreatedAt.Before(oldest) {
				oldest = item.CreatedAt
			}
		case entities.ItemStatusProcessing:
			status.Processing++
		case entities.ItemStatusCompleted:
			status.Completed++
		case entities.ItemStatusFailed:
			status.Failed++
		}
	}
	if !oldest.IsZero() && now.After(oldest) {
		status.OldestPendingAgeSeconds = int64(now.Sub(oldest) / time.Second)
	}
	return status, nil
}

func (s *Store) ListFailed(_ context.Context, limit int) ([]entities.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	failed := make([]entities.QueueItem, 0)
	for _, item := range s.items {
		if item.Status == entities.ItemStatusFailed {
			failed = append(failed, cloneItem(item))
		}
	}
	sort.Slice(failed, func(i, j int) bool {
		if !failed[i].UpdatedAt.Equal(failed[j].UpdatedAt) {
			return failed[i].UpdatedAt.After(failed[j].UpdatedAt)
		}
		return failed[i].ID < failed[j].ID
	})
	if limit > 0 && len(failed) > limit {
		failed = failed[:limit]
	}
	return failed, nil
}

func (s *Store) RequeueStale(_ context.Context, claimedBefore time.Time, now time.Time) ([]entities.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requeued := make([]entities.QueueItem, 0)
	for id, item := range s.items {
		if item.Status != entities.ItemStatusProcessing || item.ClaimedAt == nil || !item.ClaimedAt.Before(claimedBefore) {
			continue
		}
		// The returned copy keeps claim details for the caller's log line.
		requeued = append(requeued, cloneItem(item))
		item.Status = entities.ItemStatusPending
		item.ClaimedAt = nil
		item.ClaimedBy = ""
		item.UpdatedAt = now.UTC()
		s.items[id] = item
	}
	services.SortForProcessing(requeued)
	return requeued, nil
}

func (s *Store) DeleteCompletedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, item := range s.items {
		if item.Status != entities.ItemStatusCompleted || item.ProcessedAt == nil || !item.ProcessedAt.Before(cutoff) {
			continue
		}
		delete(s.items, id)
		delete(s.groups, groupKey{correlationID: item.CorrelationID, sequence: item.Sequence})
		deleted++
	}
	return deleted, nil
}

func (s *Store) FlagFailedBefore(_ context.Context, cutoff time.Time, now time.Time) ([]entities.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flagged := make([]entities.QueueItem, 0)
	for id, item := range s.items {
		if item.Status != entities.ItemStatusFailed || item.FlaggedAt != nil || !item.UpdatedAt.Before(cutoff) {
			continue
		}
		flaggedAt := now.UTC()
		item.FlaggedAt = &flaggedAt
		s.items[id] = item
		flagged = append(flagged, cloneItem(item))
	}
	services.SortForProcessing(flagged)
	return flagged, nil
}

func (s *Store) UpsertCanonical(_ context.Context, req ports.UpsertRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.rowLocked(req.Mapping, req.RecordID)
	for column, value := range req.Columns {
		row[column] = value
	}
	if existing, _ := row[req.Mapping.LegacyIDColumn].(string); existing == "" && req.LegacyID != "" {
		row[req.Mapping.LegacyIDColumn] = req.LegacyID
	}
	row["legacy_synced_at"] = req.At.UTC()
	return nil
}

func (s *Store) MarkLegacyDeleted(_ context.Context, mapping entities.EntityMapping, recordID string, legacyID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.rowLocked(mapping, recordID)
	if existing, _ := row[mapping.LegacyIDColumn].(string); existing == "" && legacyID != "" {
		row[mapping.LegacyIDColumn] = legacyID
	}
	row["legacy_deleted_at"] = at.UTC()
	row["legacy_synced_at"] = at.UTC()
	return nil
}

func (s *Store) LookupLegacyID(_ context.Context, mapping entities.EntityMapping, recordID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[mapping.PrimaryTable][recordID]
	if !ok {
		return "", false, nil
	}
	legacyID, _ := row[mapping.LegacyIDColumn].(string)
	return legacyID, legacyID != "", nil
}

func (s *Store) rowLocked(mapping entities.EntityMapping, recordID string) map[string]any {
	table, ok := s.rows[mapping.PrimaryTable]
	if !ok {
		table = make(map[string]map[string]any)
		s.rows[mapping.PrimaryTable] = table
	}
	row, ok := table[recordID]
	if !ok {
		row = map[string]any{mapping.PrimaryKey: recordID}
		table[recordID] = row
	}
	return row
}

// SeedRow stores a primary-database row as a local write would.
func (s *Store) SeedRow(table string, recordID string, columns map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[table]; !ok {
		s.rows[table] = make(map[string]map[string]any)
	}
	row := make(map[string]any, len(columns))
	for column, value := range columns {
		row[column] = value
	}
	s.rows[table][recordID] = row
}

// Row returns a copy of a primary-database row.
func (s *Store) Row(table string, recordID string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[table][recordID]
	if !ok {
		return nil, false
	}
	copied := make(map[string]any, len(row))
	for column, value := range row {
		copied[column] = value
	}
	return copied, true
}

// Items returns every queued item in claim order.
func (s *Store) Items() []entities.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.QueueItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, cloneItem(item))
	}
	services.SortForProcessing(items)
	return items
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func cloneItem(item entities.QueueItem) entities.QueueItem {
	item.Checkpoint = cloneCheckpoint(item.Checkpoint)
	item.ClaimedAt = cloneTime(item.ClaimedAt)
	item.FlaggedAt = cloneTime(item.FlaggedAt)
	item.ProcessedAt = cloneTime(item.ProcessedAt)
	return item
}

func cloneCheckpoint(checkpoint entities.Checkpoint) entities.Checkpoint {
	if checkpoint.Canonical != nil {
		canonical := make(map[string]any, len(checkpoint.Canonical))
		for key, value := range checkpoint.Canonical {
			canonical[key] = value
		}
		checkpoint.Canonical = canonical
	}
	return checkpoint
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

var (
	_ ports.QueueStore   = (*Store)(nil)
	_ ports.PrimaryStore = (*Store)(nil)
	_ ports.Clock        = (*Store)(nil)
	_ ports.IDGenerator  = (*Store)(nil)
)
