package desk

import (
	"context"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/export"
	"github.com/psds-microservice/support-service/internal/model"
)

type UserPage struct {
	Items []model.User `json:"items"`
	Total int64        `json:"total"`
}

// SetRole changes a stored role. The next session start of that user
// reconciles it back if the roster says otherwise.
func (d *Desk) SetRole(ctx context.Context, actorID, userID, role string) (*model.User, error) {
	if _, err := d.Gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	r, err := model.ParseRole(role)
	if err != nil {
		return nil, err
	}
	if err := d.Users.SetRole(ctx, userID, r); err != nil {
		return nil, err
	}
	return d.Users.Get(ctx, userID)
}

func (d *Desk) Deactivate(ctx context.Context, actorID, userID string) (*model.User, error) {
	actor, err := d.Gate.RequireAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID == userID {
		return nil, errs.Invalid("user_id", "cannot deactivate yourself")
	}
	if err := d.Users.Deactivate(ctx, userID); err != nil {
		return nil, err
	}
	d.log.Info("desk: user deactivated", "user_id", userID, "by", actor.ID)
	return d.Users.Get(ctx, userID)
}

func (d *Desk) Reactivate(ctx context.Context, actorID, userID string) (*model.User, error) {
	actor, err := d.Gate.RequireAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := d.Users.Reactivate(ctx, userID); err != nil {
		return nil, err
	}
	d.log.Info("desk: user reactivated", "user_id", userID, "by", actor.ID)
	return d.Users.Get(ctx, userID)
}

// ListUsers pages through users; role "" lists all roles.
func (d *Desk) ListUsers(ctx context.Context, actorID, role string, limit, offset int) (*UserPage, error) {
	if _, err := d.Gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	var r model.Role
	if role != "" {
		parsed, err := model.ParseRole(role)
		if err != nil {
			return nil, err
		}
		r = parsed
	}
	items, total, err := d.Users.List(ctx, r, pageSize(limit), max(offset, 0))
	if err != nil {
		return nil, err
	}
	return &UserPage{Items: items, Total: total}, nil
}

// RoleCounts returns active users per role.
func (d *Desk) RoleCounts(ctx context.Context, actorID string) (map[model.Role]int64, error) {
	if _, err := d.Gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return d.roleCounts(ctx)
}

// ExportAll builds a full data dump. Admin only.
func (d *Desk) ExportAll(ctx context.Context, actorID string) (*export.Dump, error) {
	actor, err := d.Gate.RequireAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	dump, err := export.Collect(ctx, d.Users, d.Tickets)
	if err != nil {
		return nil, err
	}
	d.log.Info("desk: data exported", "by", actor.ID, "tickets", len(dump.Tickets), "users", len(dump.Users))
	return dump, nil
}

// SyncRoles reconciles every stored user against the roster and reports how
// many roles changed. Operator tooling; there is no acting user.
func (d *Desk) SyncRoles(ctx context.Context) (int, error) {
	users, err := d.Users.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, u := range users {
		role, err := d.Users.ReconcileRole(ctx, u.ID, d.Roster)
		if err != nil {
			return changed, err
		}
		if role != u.Role {
			d.log.Info("desk: role reconciled", "user_id", u.ID, "from", u.Role, "to", role)
			changed++
		}
	}
	return changed, nil
}
