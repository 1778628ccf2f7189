package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/psds-microservice/support-service/internal/metrics"
	"github.com/psds-microservice/support-service/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Directory is the read side of the user directory used to pick recipients.
type Directory interface {
	ListByRole(ctx context.Context, role model.Role, activeOnly bool) ([]model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type Options struct {
	// Timeout bounds a single delivery, including the wait for the rate limiter.
	Timeout time.Duration
	// Rate is deliveries per second across all fan-outs; zero disables limiting.
	Rate float64
	// Parallel bounds concurrent deliveries within one fan-out.
	Parallel int
}

// Dispatcher fans events out to recipients on detached goroutines.
// Failures are logged and counted, never returned.
type Dispatcher struct {
	sender  Sender
	users   Directory
	opts    Options
	limiter *rate.Limiter
	log     *slog.Logger
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewDispatcher(sender Sender, users Directory, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Parallel <= 0 {
		opts.Parallel = 8
	}
	d := &Dispatcher{
		sender: sender,
		users:  users,
		opts:   opts,
		log:    slog.Default().With("component", "notify"),
		now:    time.Now,
	}
	if opts.Rate > 0 {
		burst := int(opts.Rate)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}
	return d
}

// Publish starts the fan-out for ev and returns immediately. The fan-out is
// not tied to any request context.
func (d *Dispatcher) Publish(ev Event) {
	d.wg.Add(1)
	metrics.FanoutStarted()
	go func() {
		defer d.wg.Done()
		defer metrics.FanoutFinished()
		d.fanout(ev)
	}()
}

// Wait blocks until every published fan-out has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Recipients resolves who hears about ev. The actor is never a recipient.
func (d *Dispatcher) Recipients(ctx context.Context, ev Event) ([]string, error) {
	var ids []string
	switch ev.Kind {
	case KindTicketCreated, KindClientMessage:
		agents, err := d.users.ListByRole(ctx, model.RoleAgent, true)
		if err != nil {
			return nil, err
		}
		admins, err := d.users.ListByRole(ctx, model.RoleAdmin, false)
		if err != nil {
			return nil, err
		}
		for _, u := range append(agents, admins...) {
			ids = append(ids, u.ID)
		}
	case KindStaffMessage, KindStatusChanged:
		ids = []string{ev.Ticket.OwnerID}
	}

	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id == "" || id == ev.ActorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (d *Dispatcher) fanout(ev Event) {
	lookupCtx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	recipients, err := d.Recipients(lookupCtx, ev)
	ownerName := ""
	if err == nil && len(recipients) > 0 {
		if owner, oerr := d.users.Get(lookupCtx, ev.Ticket.OwnerID); oerr == nil {
			ownerName = owner.DisplayName
		}
	}
	cancel()
	if err != nil {
		d.log.Warn("notify: resolve recipients", "kind", ev.Kind, "ticket_id", ev.Ticket.ID, "error", err)
		metrics.NotificationFailed(string(ev.Kind))
		return
	}

	now := d.now().UTC()
	var g errgroup.Group
	g.SetLimit(d.opts.Parallel)
	for _, r := range recipients {
		n := newNotice(ev, r, ownerName, now)
		g.Go(func() error {
			d.deliver(n)
			return nil
		})
	}
	_ = g.Wait()
}

// deliver sends one notice under its own timeout. A failure affects only this recipient.
func (d *Dispatcher) deliver(n Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			d.fail(n, err)
			return
		}
	}
	if err := d.sender.Send(ctx, n); err != nil {
		d.fail(n, err)
		return
	}
	metrics.NotificationSent(string(n.Kind))
}

func (d *Dispatcher) fail(n Notice, err error) {
	d.log.Warn("notify: delivery failed", "kind", n.Kind, "recipient", n.RecipientID, "ticket_id", n.TicketID, "error", err)
	metrics.NotificationFailed(string(n.Kind))
}
