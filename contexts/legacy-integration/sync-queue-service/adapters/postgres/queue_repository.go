package postgresadapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/services"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	queueTable              = "legacy_sync_queue"
	groupSequenceConstraint = "legacy_sync_queue_group_sequence"
)

// claimableSQL rejects items whose group has an earlier item still in flight,
// dead-lettered, or waiting out a backoff.
const claimableSQL = `q.status = ? AND q.next_eligible_at <= ? AND NOT EXISTS (
	SELECT 1 FROM legacy_sync_queue p
	WHERE p.correlation_id = q.correlation_id
	  AND p.sequence < q.sequence
	  AND (p.status IN ? OR (p.status = ? AND p.next_eligible_at > ?))
)`

type QueueRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewQueueRepository(db *gorm.DB, logger *slog.Logger) *QueueRepository {
	return &QueueRepository{
		db:     db,
		logger: application.ResolveLogger(logger),
	}
}

func (r *QueueRepository) Enqueue(ctx context.Context, correlationID string, items []entities.QueueItem) error {
	rows := make([]queueItemModel, 0, len(items))
	for _, item := range items {
		if item.CorrelationID != correlationID {
			return domainerrors.NewValidationError("correlation_id", "item %s belongs to %q", item.ID, item.CorrelationID)
		}
		row, err := queueItemModelFromEntity(item)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				if isUniqueViolation(err) && constraintName(err) == groupSequenceConstraint {
					return domainerrors.NewValidationError("sequence", "sequence %d already queued for %s", rows[i].Sequence, correlationID)
				}
				return err
			}
		}
		return nil
	})
}

func (r *QueueRepository) ClaimBatch(ctx context.Context, workerID string, limit int, now time.Time) ([]entities.QueueItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	now = now.UTC()

	var rows []queueItemModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := claimCandidates(tx, limit, now).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		if err := tx.Model(&queueItemModel{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     string(entities.ItemStatusProcessing),
				"claimed_at": now,
				"claimed_by": workerID,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		for i := range rows {
			claimedAt := now
			rows[i].Status = string(entities.ItemStatusProcessing)
			rows[i].ClaimedAt = &claimedAt
			rows[i].ClaimedBy = workerID
			rows[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toEntities(rows)
}

// claimCandidates selects and row-locks the next claimable items, skipping rows
// another worker already holds.
func claimCandidates(tx *gorm.DB, limit int, now time.Time) *gorm.DB {
	return tx.
		Table(queueTable+" AS q").
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where(claimableSQL,
			string(entities.ItemStatusPending), now,
			[]string{string(entities.ItemStatusProcessing), string(entities.ItemStatusFailed)},
			string(entities.ItemStatusPending), now,
		).
		Order("q.correlation_id, q.sequence, q.created_at").
		Limit(limit)
}

func (r *QueueRepository) MarkCompleted(ctx context.Context, itemID string, workerID string, now time.Time) error {
	now = now.UTC()
	return r.transition(ctx, itemID, workerID, entities.ItemStatusCompleted, map[string]any{
		"status":       string(entities.ItemStatusCompleted),
		"last_error":   "",
		"processed_at": now,
		"claimed_at":   nil,
		"claimed_by":   "",
		"updated_at":   now,
	})
}

func (r *QueueRepository) MarkFailed(ctx context.Context, itemID string, workerID string, lastError string, now time.Time) error {
	now = now.UTC()
	return r.transition(ctx, itemID, workerID, entities.ItemStatusFailed, map[string]any{
		"status":        string(entities.ItemStatusFailed),
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"last_error":    lastError,
		"processed_at":  now,
		"claimed_at":    nil,
		"claimed_by":    "",
		"updated_at":    now,
	})
}

func (r *QueueRepository) MarkRetry(ctx context.Context, itemID string, workerID string, lastError string, nextEligibleAt time.Time, now time.Time) error {
	return r.transition(ctx, itemID, workerID, entities.ItemStatusPending, map[string]any{
		"status":           string(entities.ItemStatusPending),
		"attempt_count":    gorm.Expr("attempt_count + 1"),
		"last_error":       lastError,
		"next_eligible_at": nextEligibleAt.UTC(),
		"claimed_at":       nil,
		"claimed_by":       "",
		"updated_at":       now.UTC(),
	})
}

func (r *QueueRepository) ReleaseClaim(ctx context.Context, itemID string, workerID string, now time.Time) error {
	return r.transition(ctx, itemID, workerID, entities.ItemStatusPending, map[string]any{
		"status":     string(entities.ItemStatusPending),
		"claimed_at": nil,
		"claimed_by": "",
		"updated_at": now.UTC(),
	})
}

// transition applies updates to an item workerID still holds in processing.
// An item already in the target status is left alone so repeated calls are
// no-ops.
func (r *QueueRepository) transition(ctx context.Context, itemID string, workerID string, target entities.ItemStatus, updates map[string]any) error {
	result := heldClaim(r.db.WithContext(ctx), itemID, workerID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return r.unheldClaim(ctx, itemID, target)
}

// heldClaim scopes an update to the row only while workerID owns its claim.
func heldClaim(tx *gorm.DB, itemID string, workerID string) *gorm.DB {
	return tx.
		Model(&queueItemModel{}).
		Where("id = ? AND status = ? AND claimed_by = ?", itemID, string(entities.ItemStatusProcessing), workerID)
}

// unheldClaim explains why a guarded update matched no row.
func (r *QueueRepository) unheldClaim(ctx context.Context, itemID string, target entities.ItemStatus) error {
	var row queueItemModel
	err := r.db.WithContext(ctx).
		Select("id", "status", "claimed_by").
		Where("id = ?", itemID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrItemNotFound
		}
		return err
	}
	switch entities.ItemStatus(row.Status) {
	case target:
		return nil
	case entities.ItemStatusProcessing:
		return fmt.Errorf("item %s now held by %s: %w", itemID, row.ClaimedBy, domainerrors.ErrClaimLost)
	case entities.ItemStatusPending:
		return fmt.Errorf("item %s was requeued: %w", itemID, domainerrors.ErrClaimLost)
	default:
		return domainerrors.ErrInvalidTransition
	}
}

func (r *QueueRepository) SaveCheckpoint(ctx context.Context, itemID string, workerID string, checkpoint entities.Checkpoint, now time.Time) error {
	canonical, err := encodeCanonical(checkpoint.Canonical)
	if err != nil {
		return err
	}
	result := heldClaim(r.db.WithContext(ctx), itemID, workerID).
		Updates(map[string]any{
			"checkpoint_stage": string(checkpoint.Stage),
			"legacy_id":        checkpoint.LegacyID,
			"canonical":        canonical,
			"updated_at":       now.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if err := r.unheldClaim(ctx, itemID, ""); err != nil {
		return err
	}
	return domainerrors.ErrInvalidTransition
}

func (r *QueueRepository) CountUnsettledPredecessors(ctx context.Context, correlationID string, sequence int) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&queueItemModel{}).
		Where("correlation_id = ? AND sequence < ? AND status <> ?", correlationID, sequence, string(entities.ItemStatusCompleted)).
		Count(&count).
		Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *QueueRepository) GetItem(ctx context.Context, itemID string) (entities.QueueItem, error) {
	var row queueItemModel
	err := r.db.WithContext(ctx).
		Where("id = ?", itemID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.QueueItem{}, domainerrors.ErrItemNotFound
		}
		return entities.QueueItem{}, err
	}
	return row.toEntity()
}

func (r *QueueRepository) ResetFailed(ctx context.Context, itemID string, now time.Time) (entities.QueueItem, error) {
	now = now.UTC()
	var row queueItemModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", itemID).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrItemNotFound
			}
			return err
		}
		if row.Status != string(entities.ItemStatusFailed) {
			return domainerrors.ErrItemNotFailed
		}
		checkpoint := entities.Checkpoint{Stage: entities.CheckpointStage(row.CheckpointStage), LegacyID: row.LegacyID}.Rewound()
		if err := resetFailedRow(tx, itemID, checkpoint, now).Error; err != nil {
			return err
		}
		row.Status = string(entities.ItemStatusPending)
		row.AttemptCount = 0
		row.NextEligibleAt = now
		row.ProcessedAt = nil
		row.FlaggedAt = nil
		row.CheckpointStage = string(checkpoint.Stage)
		row.Canonical = nil
		row.UpdatedAt = now
		return nil
	})
	if err != nil {
		return entities.QueueItem{}, err
	}
	return row.toEntity()
}

// resetFailedRow gives a failed row a fresh attempt budget. The read-back
// snapshot is always cleared; a pushed legacy id is kept.
func resetFailedRow(tx *gorm.DB, itemID string, checkpoint entities.Checkpoint, now time.Time) *gorm.DB {
	return tx.Model(&queueItemModel{}).
		Where("id = ? AND status = ?", itemID, string(entities.ItemStatusFailed)).
		Updates(map[string]any{
			"status":           string(entities.ItemStatusPending),
			"attempt_count":    0,
			"next_eligible_at": now,
			"processed_at":     nil,
			"flagged_at":       nil,
			"checkpoint_stage": string(checkpoint.Stage),
			"canonical":        nil,
			"updated_at":       now,
		})
}

func (r *QueueRepository) HasPending(ctx context.Context, now time.Time) (bool, error) {
	var rows []queueItemModel
	if err := r.db.WithContext(ctx).
		Select("id").
		Where("status = ? AND next_eligible_at <= ?", string(entities.ItemStatusPending), now.UTC()).
		Limit(1).
		Find(&rows).
		Error; err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (r *QueueRepository) StatusCounts(ctx context.Context, now time.Time) (ports.QueueStatus, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := r.db.WithContext(ctx).
		Model(&queueItemModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).
		Error; err != nil {
		return ports.QueueStatus{}, err
	}

	var status ports.QueueStatus
	for _, count := range counts {
		switch entities.ItemStatus(count.Status) {
		case entities.ItemStatusPending:
			status.Pending = int(count.Count)
		case entities.ItemStatusProcessing:
			status.Processing = int(count.Count)
		case entities.ItemStatusCompleted:
			status.Completed = int(count.Count)
		case entities.ItemStatusFailed:
			status.Failed = int(count.Count)
		}
	}

	var oldest sql.NullTime
	if err := r.db.WithContext(ctx).
		Model(&queueItemModel{}).
		Select("MIN(created_at)").
		Where("status = ?", string(entities.ItemStatusPending)).
		Row().
		Scan(&oldest); err != nil {
		return ports.QueueStatus{}, err
	}
	if oldest.Valid && now.After(oldest.Time) {
		status.OldestPendingAgeSeconds = int64(now.Sub(oldest.Time) / time.Second)
	}
	return status, nil
}

func (r *QueueRepository) ListFailed(ctx context.Context, limit int) ([]entities.QueueItem, error) {
	tx := r.db.WithContext(ctx).
		Where("status = ?", string(entities.ItemStatusFailed)).
		Order("updated_at DESC, id")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []queueItemModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEntities(rows)
}

func (r *QueueRepository) RequeueStale(ctx context.Context, claimedBefore time.Time, now time.Time) ([]entities.QueueItem, error) {
	var rows []queueItemModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := staleClaims(tx, claimedBefore).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Model(&queueItemModel{}).
			Where("id IN ?", modelIDs(rows)).
			Updates(map[string]any{
				"status":     string(entities.ItemStatusPending),
				"claimed_at": nil,
				"claimed_by": "",
				"updated_at": now.UTC(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return toEntities(rows)
}

func staleClaims(tx *gorm.DB, claimedBefore time.Time) *gorm.DB {
	return tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND claimed_at < ?", string(entities.ItemStatusProcessing), claimedBefore.UTC()).
		Order("correlation_id, sequence")
}

func (r *QueueRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", string(entities.ItemStatusCompleted), cutoff.UTC()).
		Delete(&queueItemModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (r *QueueRepository) FlagFailedBefore(ctx context.Context, cutoff time.Time, now time.Time) ([]entities.QueueItem, error) {
	now = now.UTC()
	var rows []queueItemModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := unflaggedFailures(tx, cutoff).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Model(&queueItemModel{}).
			Where("id IN ?", modelIDs(rows)).
			Update("flagged_at", now).Error; err != nil {
			return err
		}
		for i := range rows {
			flaggedAt := now
			rows[i].FlaggedAt = &flaggedAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toEntities(rows)
}

func unflaggedFailures(tx *gorm.DB, cutoff time.Time) *gorm.DB {
	return tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND flagged_at IS NULL AND updated_at < ?", string(entities.ItemStatusFailed), cutoff.UTC()).
		Order("correlation_id, sequence")
}

type queueItemModel struct {
	ID               string     `gorm:"column:id;primaryKey"`
	CorrelationID    string     `gorm:"column:correlation_id"`
	Sequence         int        `gorm:"column:sequence"`
	Target           string     `gorm:"column:target"`
	RecordID         string     `gorm:"column:record_id"`
	Operation        string     `gorm:"column:operation"`
	Payload          []byte     `gorm:"column:payload"`
	Status           string     `gorm:"column:status"`
	AttemptCount     int        `gorm:"column:attempt_count"`
	LastError        string     `gorm:"column:last_error"`
	IdempotencyToken string     `gorm:"column:idempotency_token"`
	CheckpointStage  string     `gorm:"column:checkpoint_stage"`
	LegacyID         string     `gorm:"column:legacy_id"`
	Canonical        []byte     `gorm:"column:canonical"`
	NextEligibleAt   time.Time  `gorm:"column:next_eligible_at"`
	ClaimedAt        *time.Time `gorm:"column:claimed_at"`
	ClaimedBy        string     `gorm:"column:claimed_by"`
	FlaggedAt        *time.Time `gorm:"column:flagged_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
	ProcessedAt      *time.Time `gorm:"column:processed_at"`
}

func (queueItemModel) TableName() string {
	return queueTable
}

func queueItemModelFromEntity(item entities.QueueItem) (queueItemModel, error) {
	payload, err := json.Marshal(item.Payload)
	if err != nil {
		return queueItemModel{}, err
	}
	canonical, err := encodeCanonical(item.Checkpoint.Canonical)
	if err != nil {
		return queueItemModel{}, err
	}
	return queueItemModel{
		ID:               item.ID,
		CorrelationID:    item.CorrelationID,
		Sequence:         item.Sequence,
		Target:           item.Target,
		RecordID:         item.RecordID,
		Operation:        string(item.Operation),
		Payload:          payload,
		Status:           string(item.Status),
		AttemptCount:     item.AttemptCount,
		LastError:        item.LastError,
		IdempotencyToken: item.IdempotencyToken,
		CheckpointStage:  string(item.Checkpoint.Stage),
		LegacyID:         item.Checkpoint.LegacyID,
		Canonical:        canonical,
		NextEligibleAt:   item.NextEligibleAt.UTC(),
		ClaimedAt:        utcPtr(item.ClaimedAt),
		ClaimedBy:        item.ClaimedBy,
		FlaggedAt:        utcPtr(item.FlaggedAt),
		CreatedAt:        item.CreatedAt.UTC(),
		UpdatedAt:        item.UpdatedAt.UTC(),
		ProcessedAt:      utcPtr(item.ProcessedAt),
	}, nil
}

func (m queueItemModel) toEntity() (entities.QueueItem, error) {
	var payload entities.Payload
	if err := json.Unmarshal(m.Payload, &payload); err != nil {
		return entities.QueueItem{}, err
	}
	var canonical map[string]any
	if len(m.Canonical) > 0 {
		decoded, err := services.DecodeObject(m.Canonical)
		if err != nil {
			return entities.QueueItem{}, err
		}
		canonical = decoded
	}
	return entities.QueueItem{
		ID:               m.ID,
		CorrelationID:    m.CorrelationID,
		Sequence:         m.Sequence,
		Target:           m.Target,
		RecordID:         m.RecordID,
		Operation:        entities.Operation(m.Operation),
		Payload:          payload,
		Status:           entities.ItemStatus(m.Status),
		AttemptCount:     m.AttemptCount,
		LastError:        m.LastError,
		IdempotencyToken: m.IdempotencyToken,
		Checkpoint: entities.Checkpoint{
			Stage:     entities.CheckpointStage(m.CheckpointStage),
			LegacyID:  m.LegacyID,
			Canonical: canonical,
		},
		NextEligibleAt: m.NextEligibleAt.UTC(),
		ClaimedAt:      utcPtr(m.ClaimedAt),
		ClaimedBy:      m.ClaimedBy,
		FlaggedAt:      utcPtr(m.FlaggedAt),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
		ProcessedAt:    utcPtr(m.ProcessedAt),
	}, nil
}

func toEntities(rows []queueItemModel) ([]entities.QueueItem, error) {
	items := make([]entities.QueueItem, 0, len(rows))
	for _, row := range rows {
		item, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func modelIDs(rows []queueItemModel) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

func encodeCanonical(canonical map[string]any) ([]byte, error) {
	if canonical == nil {
		return nil, nil
	}
	return json.Marshal(canonical)
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

var _ ports.QueueStore = (*QueueRepository)(nil)
