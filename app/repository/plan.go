package repository

import (
	"context"
	"database/sql"

	"github.com/motorlane/ms-go-entitlements/app/entity"
)

type PlanRepository struct {
	db DBTX
}

func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, code, name, max_browse_count, max_listing_count, max_job_posts,
	       listing_visibility_delay_hours, notifications_enabled,
	       price_cents, currency, billing_period_days, is_active,
	       created_at, updated_at`

func (r *PlanRepository) FindByID(ctx context.Context, id uint64) (*entity.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
		WHERE id = ?
	`

	item, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return item, nil
}

func (r *PlanRepository) List(ctx context.Context, activeOnly bool) ([]*entity.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
	`
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Plan, 0)
	for rows.Next() {
		item, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanPlan(scanner rowScanner) (*entity.Plan, error) {
	item := &entity.Plan{}
	var maxBrowse, maxListing, maxJobPosts sql.NullInt32

	err := scanner.Scan(
		&item.ID,
		&item.Code,
		&item.Name,
		&maxBrowse,
		&maxListing,
		&maxJobPosts,
		&item.ListingVisibilityDelayHours,
		&item.NotificationsEnabled,
		&item.PriceCents,
		&item.Currency,
		&item.BillingPeriodDays,
		&item.IsActive,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.MaxBrowseCount = quotaFromColumn(maxBrowse)
	item.MaxListingCount = quotaFromColumn(maxListing)
	item.MaxJobPosts = quotaFromColumn(maxJobPosts)

	return item, nil
}
