package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/motorlane/ms-go-entitlements/app/entity"
)

var (
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrVersionConflict           = errors.New("subscription version conflict")
)

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, user_id, plan_id, start_at, end_at, status,
	       browse_count_used, last_browse_reset_at, listing_count_used, job_posts_used,
	       assigned_by, notes, cancelled_at, version, created_at, updated_at`

func (r *SubscriptionRepository) Create(ctx context.Context, subscription *entity.UserSubscription) error {
	query := `
		INSERT INTO user_subscriptions (
			user_id, plan_id, start_at, end_at, status,
			browse_count_used, last_browse_reset_at, listing_count_used, job_posts_used,
			assigned_by, notes, cancelled_at, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		subscription.UserID,
		subscription.PlanID,
		subscription.StartAt,
		subscription.EndAt,
		string(subscription.Status),
		subscription.BrowseCountUsed,
		subscription.LastBrowseResetAt,
		subscription.ListingCountUsed,
		subscription.JobPostsUsed,
		subscription.AssignedBy,
		subscription.Notes,
		nullableTimeValue(subscription.CancelledAt),
		subscription.Version,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSubscriptionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	subscription.ID = uint64(id)
	return nil
}

// Update performs a compare-and-swap on the record's version stamp. On
// success the in-memory version is advanced; a stale stamp yields
// ErrVersionConflict so callers can reload and retry.
func (r *SubscriptionRepository) Update(ctx context.Context, subscription *entity.UserSubscription) error {
	query := `
		UPDATE user_subscriptions
		SET plan_id = ?, start_at = ?, end_at = ?, status = ?,
		    browse_count_used = ?, last_browse_reset_at = ?,
		    listing_count_used = ?, job_posts_used = ?,
		    assigned_by = ?, notes = ?, cancelled_at = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		subscription.PlanID,
		subscription.StartAt,
		subscription.EndAt,
		string(subscription.Status),
		subscription.BrowseCountUsed,
		subscription.LastBrowseResetAt,
		subscription.ListingCountUsed,
		subscription.JobPostsUsed,
		subscription.AssignedBy,
		subscription.Notes,
		nullableTimeValue(subscription.CancelledAt),
		subscription.UpdatedAt,
		subscription.ID,
		subscription.Version,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		existing, err := r.FindByID(ctx, subscription.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrSubscriptionNotFound
		}
		return ErrVersionConflict
	}

	subscription.Version++
	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id uint64) (*entity.UserSubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE id = ?
	`

	item := &entity.UserSubscription{}
	if err := scanSubscription(r.db.QueryRowContext(ctx, query, id), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

func (r *SubscriptionRepository) FindByUserID(ctx context.Context, userID string) (*entity.UserSubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE user_id = ?
	`

	item := &entity.UserSubscription{}
	if err := scanSubscription(r.db.QueryRowContext(ctx, query, userID), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

func (r *SubscriptionRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]*entity.UserSubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE status = ?
		  AND end_at < ?
		ORDER BY id ASC
	`

	return r.listByQuery(ctx, query, string(entity.SubscriptionStatusActive), now)
}

func (r *SubscriptionRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*entity.UserSubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE status = ?
		  AND end_at >= ?
		  AND end_at <= ?
		ORDER BY end_at ASC
	`

	return r.listByQuery(ctx, query, string(entity.SubscriptionStatusActive), from, to)
}

func (r *SubscriptionRepository) listByQuery(ctx context.Context, query string, args ...interface{}) ([]*entity.UserSubscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.UserSubscription, 0)
	for rows.Next() {
		item := &entity.UserSubscription{}
		if err := scanSubscription(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(scanner rowScanner, item *entity.UserSubscription) error {
	var status string
	var notes sql.NullString
	var cancelledAt sql.NullTime

	err := scanner.Scan(
		&item.ID,
		&item.UserID,
		&item.PlanID,
		&item.StartAt,
		&item.EndAt,
		&status,
		&item.BrowseCountUsed,
		&item.LastBrowseResetAt,
		&item.ListingCountUsed,
		&item.JobPostsUsed,
		&item.AssignedBy,
		&notes,
		&cancelledAt,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return err
	}

	item.Status = entity.SubscriptionStatus(status)
	if notes.Valid {
		item.Notes = notes.String
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		item.CancelledAt = &t
	} else {
		item.CancelledAt = nil
	}

	return nil
}

func nullableTimeValue(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
