package notify

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/model"
)

type fakeDirectory struct {
	users []model.User
}

func (f fakeDirectory) ListByRole(_ context.Context, role model.Role, activeOnly bool) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		if u.Role == role && (!activeOnly || u.Active) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f fakeDirectory) Get(_ context.Context, id string) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, errs.ErrUserNotFound
}

type recorder struct {
	mu      sync.Mutex
	notices []Notice
	fail    map[string]bool
}

func (r *recorder) Send(_ context.Context, n Notice) error {
	if r.fail[n.RecipientID] {
		return errors.New("forbidden: bot was blocked by the user")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

func (r *recorder) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, n := range r.notices {
		ids = append(ids, n.RecipientID)
	}
	sort.Strings(ids)
	return ids
}

var staffDirectory = fakeDirectory{users: []model.User{
	{ID: "owner", DisplayName: "Olga", Role: model.RoleClient, Active: true},
	{ID: "ag1", Role: model.RoleAgent, Active: true},
	{ID: "ag2", Role: model.RoleAgent, Active: false},
	{ID: "ad1", Role: model.RoleAdmin, Active: true},
	{ID: "ad2", Role: model.RoleAdmin, Active: false},
}}

func ticket() model.Ticket {
	return model.Ticket{
		ID:       5,
		OwnerID:  "owner",
		Category: model.CategoryTechnical,
		Subject:  strings.Repeat("s", 80),
		Status:   model.TicketStatusNew,
	}
}

func TestDispatcher_CreatedGoesToStaff(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, staffDirectory, Options{Timeout: time.Second})
	d.Publish(Event{Kind: KindTicketCreated, Ticket: ticket(), ActorID: "owner"})
	d.Wait()

	got := rec.recipients()
	want := []string{"ad1", "ad2", "ag1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
	n := rec.notices[0]
	if n.OwnerName != "Olga" || n.TicketID != 5 || n.ID == "" {
		t.Fatalf("notice payload: %+v", n)
	}
	if len([]rune(n.Subject)) != SubjectPreviewLen+3 || !strings.HasSuffix(n.Subject, "...") {
		t.Fatalf("subject not truncated: %q", n.Subject)
	}
}

func TestDispatcher_ActorExcluded(t *testing.T) {
	d := NewDispatcher(&recorder{}, staffDirectory, Options{})
	ids, err := d.Recipients(context.Background(), Event{Kind: KindClientMessage, Ticket: ticket(), ActorID: "ad1"})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if id == "ad1" {
			t.Fatalf("actor received own notice: %v", ids)
		}
	}

	ids, _ = d.Recipients(context.Background(), Event{Kind: KindStatusChanged, Ticket: ticket(), ActorID: "ag1"})
	if len(ids) != 1 || ids[0] != "owner" {
		t.Fatalf("status change recipients = %v", ids)
	}
	ids, _ = d.Recipients(context.Background(), Event{Kind: KindStaffMessage, Ticket: ticket(), ActorID: "owner"})
	if len(ids) != 0 {
		t.Fatalf("owner acting as staff should not notify self: %v", ids)
	}
}

func TestDispatcher_FailureIsolated(t *testing.T) {
	rec := &recorder{fail: map[string]bool{"ad1": true}}
	d := NewDispatcher(rec, staffDirectory, Options{Timeout: time.Second, Parallel: 1})
	d.Publish(Event{Kind: KindClientMessage, Ticket: ticket(), ActorID: "owner", Message: &model.TicketMessage{Body: "Any news?"}})
	d.Wait()

	got := rec.recipients()
	if strings.Join(got, ",") != "ad2,ag1" {
		t.Fatalf("delivered = %v", got)
	}
	if rec.notices[0].Body != "Any news?" {
		t.Fatalf("body not carried: %+v", rec.notices[0])
	}
}

func TestDispatcher_TimeoutBounded(t *testing.T) {
	blocking := SenderFunc(func(ctx context.Context, _ Notice) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d := NewDispatcher(blocking, staffDirectory, Options{Timeout: 30 * time.Millisecond})
	start := time.Now()
	d.Publish(Event{Kind: KindStatusChanged, Ticket: ticket(), ActorID: "ag1"})
	d.Wait()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("fan-out not bounded by timeout: %s", elapsed)
	}
}

func TestDispatcher_PublishIsDetached(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	sent := make(chan Notice, 1)
	slow := SenderFunc(func(ctx context.Context, n Notice) error {
		<-release
		once.Do(func() { sent <- n })
		return nil
	})
	d := NewDispatcher(slow, staffDirectory, Options{Timeout: time.Second})

	returned := make(chan struct{})
	go func() {
		d.Publish(Event{Kind: KindStaffMessage, Ticket: ticket(), ActorID: "ag1"})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on delivery")
	}
	close(release)
	d.Wait()
	if n := <-sent; n.RecipientID != "owner" || n.Kind != KindStaffMessage {
		t.Fatalf("unexpected notice %+v", n)
	}
}
