// Package export renders full data dumps as a JSON backup or CSV files.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/psds-microservice/support-service/internal/model"
	"github.com/psds-microservice/support-service/internal/service"
)

// Version is the dump format version.
const Version = "1.0"

const timeLayout = time.RFC3339

type UserLister interface {
	ListAll(ctx context.Context) ([]model.User, error)
}

type TicketLister interface {
	ListAll(ctx context.Context) ([]model.Ticket, error)
	ListAllMessages(ctx context.Context) ([]model.TicketMessage, error)
	Stats(ctx context.Context) (*service.Stats, error)
}

type Dump struct {
	CreatedAt time.Time             `json:"created_at"`
	Version   string                `json:"version"`
	Users     []model.User          `json:"users"`
	Tickets   []model.Ticket        `json:"tickets"`
	Messages  []model.TicketMessage `json:"messages"`
	Stats     *service.Stats        `json:"stats"`
}

// Collect reads everything needed for a dump. Reads are not taken under one
// snapshot; counts may lag rows written meanwhile.
func Collect(ctx context.Context, users UserLister, tickets TicketLister) (*Dump, error) {
	u, err := users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: users: %w", err)
	}
	t, err := tickets.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: tickets: %w", err)
	}
	m, err := tickets.ListAllMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: messages: %w", err)
	}
	st, err := tickets.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: stats: %w", err)
	}
	return &Dump{
		CreatedAt: time.Now().UTC(),
		Version:   Version,
		Users:     nonNil(u),
		Tickets:   nonNil(t),
		Messages:  nonNil(m),
		Stats:     st,
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func WriteJSON(w io.Writer, d *Dump) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// CSV file names written by WriteCSVDir.
const (
	UsersFile    = "users.csv"
	TicketsFile  = "tickets.csv"
	MessagesFile = "messages.csv"
	StatsFile    = "stats.csv"
)

// WriteCSVDir writes one CSV file per table into dir, creating it if needed.
func WriteCSVDir(dir string, d *Dump) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	writers := []struct {
		name  string
		write func(io.Writer, *Dump) error
	}{
		{UsersFile, WriteUsersCSV},
		{TicketsFile, WriteTicketsCSV},
		{MessagesFile, WriteMessagesCSV},
		{StatsFile, WriteStatsCSV},
	}
	for _, w := range writers {
		if err := writeFile(filepath.Join(dir, w.name), d, w.write); err != nil {
			return fmt.Errorf("export: %s: %w", w.name, err)
		}
	}
	return nil
}

func writeFile(path string, d *Dump, write func(io.Writer, *Dump) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, d); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func WriteUsersCSV(w io.Writer, d *Dump) error {
	rows := [][]string{{"id", "display_name", "username", "role", "active", "created_at"}}
	for _, u := range d.Users {
		rows = append(rows, []string{
			u.ID, u.DisplayName, u.Username, string(u.Role),
			strconv.FormatBool(u.Active), u.CreatedAt.UTC().Format(timeLayout),
		})
	}
	return writeAll(w, rows)
}

func WriteTicketsCSV(w io.Writer, d *Dump) error {
	rows := [][]string{{"id", "owner_id", "category", "subject", "status", "priority", "assigned_staff_id", "created_at", "updated_at"}}
	for _, t := range d.Tickets {
		assigned := ""
		if t.AssignedStaffID != nil {
			assigned = *t.AssignedStaffID
		}
		rows = append(rows, []string{
			strconv.FormatUint(t.ID, 10), t.OwnerID, string(t.Category), t.Subject,
			string(t.Status), string(t.Priority), assigned,
			t.CreatedAt.UTC().Format(timeLayout), t.UpdatedAt.UTC().Format(timeLayout),
		})
	}
	return writeAll(w, rows)
}

func WriteMessagesCSV(w io.Writer, d *Dump) error {
	rows := [][]string{{"id", "ticket_id", "author_id", "is_staff", "body", "created_at"}}
	for _, m := range d.Messages {
		rows = append(rows, []string{
			strconv.FormatUint(m.ID, 10), strconv.FormatUint(m.TicketID, 10), m.AuthorID,
			strconv.FormatBool(m.IsStaff), m.Body, m.CreatedAt.UTC().Format(timeLayout),
		})
	}
	return writeAll(w, rows)
}

// WriteStatsCSV writes metric,value rows: total then one row per status.
func WriteStatsCSV(w io.Writer, d *Dump) error {
	rows := [][]string{{"metric", "value"}}
	if d.Stats != nil {
		rows = append(rows, []string{"total", strconv.FormatInt(d.Stats.Total, 10)})
		for _, s := range model.Statuses {
			rows = append(rows, []string{"status_" + string(s), strconv.FormatInt(d.Stats.ByStatus[s], 10)})
		}
	}
	return writeAll(w, rows)
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
