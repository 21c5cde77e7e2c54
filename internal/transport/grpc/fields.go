package grpc

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"slotkeeper/backend/internal/domain"
)

// fields reads typed values out of a Struct request. Absent fields read as
// zero values; present fields of the wrong shape are validation errors.
type fields map[string]*structpb.Value

func fieldsOf(req *structpb.Struct) fields {
	if req == nil {
		return fields{}
	}
	return fields(req.GetFields())
}

func (f fields) has(name string) bool {
	v, ok := f[name]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

func (f fields) str(name string) (string, error) {
	if !f.has(name) {
		return "", nil
	}
	s, ok := f[name].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", domain.Invalid(name + " must be a string")
	}
	return strings.TrimSpace(s.StringValue), nil
}

func (f fields) id(name string) (uuid.UUID, error) {
	s, err := f.str(name)
	if err != nil {
		return uuid.Nil, err
	}
	if s == "" {
		return uuid.Nil, domain.Invalid(name + " is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, domain.Invalid(name + " must be a UUID")
	}
	return id, nil
}

func (f fields) date(name string) (time.Time, error) {
	s, err := f.str(name)
	if err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return time.Time{}, domain.Invalid(name + " is required")
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, domain.Invalid(name + " must be YYYY-MM-DD")
	}
	return d, nil
}

func (f fields) optionalDate(name string) (*time.Time, error) {
	if !f.has(name) {
		return nil, nil
	}
	d, err := f.date(name)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (f fields) clock(name string) (domain.TimeOfDay, error) {
	s, err := f.str(name)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, domain.Invalid(name + " is required")
	}
	t, err := domain.ParseTimeOfDay(s)
	if err != nil {
		return 0, domain.Invalid(name + " must be HH:MM")
	}
	return t, nil
}

func (f fields) integer(name string) (int, error) {
	if !f.has(name) {
		return 0, domain.Invalid(name + " is required")
	}
	n, ok := f[name].GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, domain.Invalid(name + " must be an integer")
	}
	return int(n.NumberValue), nil
}

func (f fields) boolean(name string, def bool) (bool, error) {
	if !f.has(name) {
		return def, nil
	}
	b, ok := f[name].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, domain.Invalid(name + " must be a boolean")
	}
	return b.BoolValue, nil
}

func (f fields) optionalString(name string) (*string, error) {
	if !f.has(name) {
		return nil, nil
	}
	s, err := f.str(name)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func bookingToMap(b domain.Booking) map[string]any {
	return map[string]any{
		"id":            b.ID.String(),
		"provider_id":   b.ProviderID.String(),
		"subject_id":    b.SubjectID,
		"contact_phone": b.ContactPhone,
		"date":          domain.FormatDate(b.Date),
		"start":         b.Start.String(),
		"end":           b.End.String(),
		"window_start":  b.WindowStart.String(),
		"window_end":    b.WindowEnd.String(),
		"slot_minutes":  b.SlotMinutes,
		"status":        string(b.Status),
		"active":        b.Active,
		"notes":         b.Notes,
		"created_at":    b.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":    b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func bookingsToList(bs []domain.Booking) []any {
	out := make([]any, 0, len(bs))
	for _, b := range bs {
		out = append(out, bookingToMap(b))
	}
	return out
}

func windowToMap(w domain.WeeklyAvailability) map[string]any {
	return map[string]any{
		"id":           w.ID.String(),
		"provider_id":  w.ProviderID.String(),
		"weekday":      int(w.Weekday),
		"start":        w.Start.String(),
		"end":          w.End.String(),
		"slot_minutes": w.SlotMinutes,
		"available":    w.Available,
	}
}

func providerToMap(p domain.Provider) map[string]any {
	return map[string]any{
		"id":           p.ID.String(),
		"display_name": p.DisplayName,
		"active":       p.Active,
		"created_at":   p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
