package model

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/psds-microservice/support-service/internal/errs"
)

const (
	SubjectMinLen     = 5
	SubjectMaxLen     = 100
	DescriptionMinLen = 10
	DescriptionMaxLen = 1000
	BodyMinLen        = 5
	BodyMaxLen        = 1000
)

// NewTicketInput is what a client submits when opening a ticket.
type NewTicketInput struct {
	Category    string
	Subject     string
	Description string
}

// Normalize trims the free-text fields and validates every field.
func (in NewTicketInput) Normalize() (NewTicketInput, error) {
	out := NewTicketInput{
		Category:    strings.TrimSpace(strings.ToLower(in.Category)),
		Subject:     strings.TrimSpace(in.Subject),
		Description: strings.TrimSpace(in.Description),
	}
	if !Category(out.Category).Valid() {
		return out, errs.Invalid("category", "must be one of "+joinCategories())
	}
	if err := checkLength("subject", out.Subject, SubjectMinLen, SubjectMaxLen); err != nil {
		return out, err
	}
	if err := checkLength("description", out.Description, DescriptionMinLen, DescriptionMaxLen); err != nil {
		return out, err
	}
	return out, nil
}

// NormalizeBody trims a message body and checks its length.
func NormalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if err := checkLength("body", body, BodyMinLen, BodyMaxLen); err != nil {
		return body, err
	}
	return body, nil
}

// ParseStatus accepts only the five lifecycle statuses.
func ParseStatus(s string) (TicketStatus, bool) {
	st := TicketStatus(strings.TrimSpace(strings.ToLower(s)))
	return st, st.Valid()
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.TrimSpace(strings.ToLower(s)))
	if !p.Valid() {
		return p, errs.Invalid("priority", "must be one of low, medium, high")
	}
	return p, nil
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	if !r.Valid() {
		return r, errs.ErrInvalidRole
	}
	return r, nil
}

// Truncate shortens s to at most n characters, marking the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

func checkLength(field, v string, min, max int) error {
	n := utf8.RuneCountInString(v)
	if n < min {
		return errs.Invalid(field, fmt.Sprintf("min=%d", min))
	}
	if n > max {
		return errs.Invalid(field, fmt.Sprintf("max=%d", max))
	}
	return nil
}

func joinCategories() string {
	parts := make([]string, len(Categories))
	for i, c := range Categories {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
