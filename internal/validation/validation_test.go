package validation

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
)

type sample struct {
	ID    uuid.UUID `json:"provider_id" validate:"required"`
	Name  string    `json:"display_name" validate:"required,max=5"`
	Count int       `json:"slot_minutes" validate:"gt=0"`
	Day   int       `json:"weekday" validate:"min=0,max=6"`
}

func TestStruct(t *testing.T) {
	valid := sample{ID: uuid.New(), Name: "ok", Count: 30, Day: 2}

	tests := []struct {
		name    string
		mutate  func(s *sample)
		wantMsg string
	}{
		{name: "valid", mutate: func(s *sample) {}},
		{name: "nil uuid", mutate: func(s *sample) { s.ID = uuid.Nil }, wantMsg: "provider_id is required"},
		{name: "empty name", mutate: func(s *sample) { s.Name = "" }, wantMsg: "display_name is required"},
		{name: "long name", mutate: func(s *sample) { s.Name = "toolong" }, wantMsg: "display_name must be at most 5 characters"},
		{name: "zero count", mutate: func(s *sample) { s.Count = 0 }, wantMsg: "slot_minutes must be greater than 0"},
		{name: "weekday high", mutate: func(s *sample) { s.Day = 7 }, wantMsg: "weekday must be at most 6"},
		{name: "weekday low", mutate: func(s *sample) { s.Day = -1 }, wantMsg: "weekday must be at least 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := Struct(s)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("Struct error: %v", err)
				}
				return
			}
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error type = %T, want *domain.ValidationError", err)
			}
			if vErr.Error() != tt.wantMsg {
				t.Fatalf("error = %q, want %q", vErr.Error(), tt.wantMsg)
			}
		})
	}
}
