package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/psds-microservice/support-service/internal/errs"
)

func TestNewTicketInput_SubjectBounds(t *testing.T) {
	cases := []struct {
		name       string
		subject    string
		wantErr    bool
		constraint string
	}{
		{"too short", strings.Repeat("a", 4), true, "min=5"},
		{"min", strings.Repeat("a", 5), false, ""},
		{"max", strings.Repeat("a", 100), false, ""},
		{"too long", strings.Repeat("a", 101), true, "max=100"},
		{"padding trimmed", "  " + strings.Repeat("a", 4) + "  ", true, "min=5"},
		{"multibyte counts characters", strings.Repeat("я", 100), false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTicketInput{
				Category:    "technical",
				Subject:     tc.subject,
				Description: "Cannot log in since morning",
			}.Normalize()
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *errs.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != "subject" || ve.Constraint != tc.constraint {
				t.Fatalf("got %s/%s, want subject/%s", ve.Field, ve.Constraint, tc.constraint)
			}
			if !errors.Is(err, errs.ErrValidation) {
				t.Fatalf("ValidationError must match ErrValidation")
			}
		})
	}
}

func TestNewTicketInput_DescriptionAndCategory(t *testing.T) {
	_, err := NewTicketInput{Category: "technical", Subject: "Login broken", Description: "too short"}.Normalize()
	var ve *errs.ValidationError
	if !errors.As(err, &ve) || ve.Field != "description" || ve.Constraint != "min=10" {
		t.Fatalf("expected description min error, got %v", err)
	}

	_, err = NewTicketInput{Category: "technical", Subject: "Login broken", Description: strings.Repeat("d", 1001)}.Normalize()
	if !errors.As(err, &ve) || ve.Field != "description" || ve.Constraint != "max=1000" {
		t.Fatalf("expected description max error, got %v", err)
	}

	_, err = NewTicketInput{Category: "weather", Subject: "Login broken", Description: "Cannot log in since morning"}.Normalize()
	if !errors.As(err, &ve) || ve.Field != "category" {
		t.Fatalf("expected category error, got %v", err)
	}

	in, err := NewTicketInput{Category: " Technical ", Subject: " Login broken ", Description: "Cannot log in since morning"}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if in.Category != "technical" || in.Subject != "Login broken" {
		t.Fatalf("unexpected normalization: %+v", in)
	}
}

func TestNormalizeBody(t *testing.T) {
	if _, err := NormalizeBody("hey"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for short body, got %v", err)
	}
	if _, err := NormalizeBody(strings.Repeat("b", 1001)); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for long body, got %v", err)
	}
	body, err := NormalizeBody("  Still broken  ")
	if err != nil || body != "Still broken" {
		t.Fatalf("got %q, %v", body, err)
	}
}

func TestParseStatusRejectsUnknown(t *testing.T) {
	for _, s := range Statuses {
		if _, ok := ParseStatus(string(s)); !ok {
			t.Fatalf("status %q should parse", s)
		}
	}
	for _, s := range []string{"", "open", "done", "closed; drop table"} {
		if _, ok := ParseStatus(s); ok {
			t.Fatalf("status %q should not parse", s)
		}
	}
}

func TestParseRoleAndPriority(t *testing.T) {
	if _, err := ParseRole("root"); !errors.Is(err, errs.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if r, err := ParseRole("Agent"); err != nil || r != RoleAgent {
		t.Fatalf("got %q, %v", r, err)
	}
	if _, err := ParsePriority("urgent"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRosterTargetPrecedence(t *testing.T) {
	r := NewRoster([]string{"1", " "}, []string{"1", "2"})
	if got := r.Target("1"); got != RoleAdmin {
		t.Fatalf("id in both lists should be admin, got %s", got)
	}
	if got := r.Target("2"); got != RoleAgent {
		t.Fatalf("got %s, want agent", got)
	}
	if got := r.Target("3"); got != RoleClient {
		t.Fatalf("got %s, want client", got)
	}
	if got := r.Target(""); got != RoleClient {
		t.Fatalf("blank id must not match, got %s", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 50); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("абвгд", 3); got != "абв..." {
		t.Fatalf("got %q", got)
	}
}
