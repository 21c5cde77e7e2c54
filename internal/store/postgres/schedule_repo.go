package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

type ScheduleRepo struct {
	db *bun.DB
}

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

var _ store.ScheduleRepository = (*ScheduleRepo)(nil)

func (r *ScheduleRepo) CreateProvider(ctx context.Context, p domain.Provider) (domain.Provider, error) {
	m := p
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Provider{}, mapError(err)
	}
	return m, nil
}

func (r *ScheduleRepo) GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error) {
	return getProvider(ctx, r.db, providerID)
}

func (r *ScheduleRepo) ListProviders(ctx context.Context, activeOnly bool) ([]domain.Provider, error) {
	var rows []domain.Provider
	q := r.db.NewSelect().Model(&rows)
	if activeOnly {
		q = q.Where("active")
	}
	if err := q.OrderExpr("display_name ASC").Scan(ctx); err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

// DeactivateProvider only flips the flag; existing bookings are left alone.
func (r *ScheduleRepo) DeactivateProvider(ctx context.Context, providerID uuid.UUID) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Provider)(nil)).
		Set("active = FALSE").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", providerID).
		Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *ScheduleRepo) UpsertWeeklyAvailability(ctx context.Context, w domain.WeeklyAvailability) (domain.WeeklyAvailability, error) {
	m := w
	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (provider_id, weekday) DO UPDATE").
		Set("start_minute = EXCLUDED.start_minute").
		Set("end_minute = EXCLUDED.end_minute").
		Set("slot_minutes = EXCLUDED.slot_minutes").
		Set("available = EXCLUDED.available").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.WeeklyAvailability{}, mapError(err)
	}
	return m, nil
}

func (r *ScheduleRepo) ListWeeklyAvailability(ctx context.Context, providerID uuid.UUID) ([]domain.WeeklyAvailability, error) {
	var rows []domain.WeeklyAvailability
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("weekday ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

// DeleteWeeklyAvailability removes the definition; bookings made under it
// keep their captured window.
func (r *ScheduleRepo) DeleteWeeklyAvailability(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) error {
	res, err := r.db.NewDelete().
		Model((*domain.WeeklyAvailability)(nil)).
		Where("provider_id = ?", providerID).
		Where("weekday = ?", int(weekday)).
		Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
