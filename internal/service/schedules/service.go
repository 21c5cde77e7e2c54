package schedules

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
	"slotkeeper/backend/internal/validation"
)

// Service administers providers and their weekly windows. Changing a window
// never touches bookings already made under it.
type Service struct {
	repo store.ScheduleRepository
}

func NewService(repo store.ScheduleRepository) *Service {
	return &Service{repo: repo}
}

type SetWeeklyAvailabilityInput struct {
	ProviderID  uuid.UUID        `json:"provider_id" validate:"required"`
	Weekday     int              `json:"weekday" validate:"min=0,max=6"`
	Start       domain.TimeOfDay `json:"start" validate:"min=0,max=1440"`
	End         domain.TimeOfDay `json:"end" validate:"min=0,max=1440"`
	SlotMinutes int              `json:"slot_minutes" validate:"gt=0,max=1440"`
	Available   bool             `json:"available"`
}

type createProviderInput struct {
	DisplayName string `json:"display_name" validate:"required,max=200"`
}

func (s *Service) CreateProvider(ctx context.Context, displayName string) (domain.Provider, error) {
	in := createProviderInput{DisplayName: strings.TrimSpace(displayName)}
	if err := validation.Struct(in); err != nil {
		return domain.Provider{}, err
	}
	return s.repo.CreateProvider(ctx, domain.Provider{DisplayName: in.DisplayName, Active: true})
}

func (s *Service) GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error) {
	if providerID == uuid.Nil {
		return domain.Provider{}, domain.Invalid("provider_id is required")
	}
	return s.repo.GetProvider(ctx, providerID)
}

func (s *Service) ListProviders(ctx context.Context, activeOnly bool) ([]domain.Provider, error) {
	return s.repo.ListProviders(ctx, activeOnly)
}

func (s *Service) DeactivateProvider(ctx context.Context, providerID uuid.UUID) error {
	if providerID == uuid.Nil {
		return domain.Invalid("provider_id is required")
	}
	return s.repo.DeactivateProvider(ctx, providerID)
}

// SetWeeklyAvailability replaces the provider's window for one weekday.
func (s *Service) SetWeeklyAvailability(ctx context.Context, in SetWeeklyAvailabilityInput) (domain.WeeklyAvailability, error) {
	if err := validation.Struct(in); err != nil {
		return domain.WeeklyAvailability{}, err
	}

	w := domain.WeeklyAvailability{
		ProviderID:  in.ProviderID,
		Weekday:     time.Weekday(in.Weekday),
		Start:       in.Start,
		End:         in.End,
		SlotMinutes: in.SlotMinutes,
		Available:   in.Available,
	}
	if err := w.Validate(); err != nil {
		return domain.WeeklyAvailability{}, err
	}

	if _, err := s.repo.GetProvider(ctx, in.ProviderID); err != nil {
		return domain.WeeklyAvailability{}, err
	}
	return s.repo.UpsertWeeklyAvailability(ctx, w)
}

func (s *Service) ListWeeklyAvailability(ctx context.Context, providerID uuid.UUID) ([]domain.WeeklyAvailability, error) {
	if providerID == uuid.Nil {
		return nil, domain.Invalid("provider_id is required")
	}
	return s.repo.ListWeeklyAvailability(ctx, providerID)
}

func (s *Service) DeleteWeeklyAvailability(ctx context.Context, providerID uuid.UUID, weekday int) error {
	if providerID == uuid.Nil {
		return domain.Invalid("provider_id is required")
	}
	if weekday < 0 || weekday > 6 {
		return domain.Invalid("weekday must be between 0 (Sunday) and 6 (Saturday)")
	}
	return s.repo.DeleteWeeklyAvailability(ctx, providerID, time.Weekday(weekday))
}
