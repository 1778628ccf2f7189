// Package access is the authorization gate in front of every privileged
// ticket or user operation.
package access

import (
	"context"
	"errors"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/model"
)

// Directory is the part of the user directory the gate reads.
type Directory interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// Actor is a caller resolved against the directory.
type Actor struct {
	ID     string
	Role   model.Role
	Known  bool
	Active bool
}

// Effective is the role used for permission checks. Unknown and deactivated
// users resolve to client.
func (a Actor) Effective() model.Role {
	if !a.Known || !a.Active {
		return model.RoleClient
	}
	return a.Role
}

func (a Actor) IsClient() bool       { return a.Effective() == model.RoleClient }
func (a Actor) IsAgentOrAdmin() bool { return a.Effective().Staff() }
func (a Actor) IsAdmin() bool        { return a.Effective() == model.RoleAdmin }

type Gate struct {
	users Directory
}

func NewGate(users Directory) *Gate {
	return &Gate{users: users}
}

// Resolve looks up id. An unknown id is not an error: it yields a client actor.
func (g *Gate) Resolve(ctx context.Context, id string) (Actor, error) {
	u, err := g.users.Get(ctx, id)
	if errors.Is(err, errs.ErrUserNotFound) {
		return Actor{ID: id, Role: model.RoleClient}, nil
	}
	if err != nil {
		return Actor{}, err
	}
	return Actor{ID: u.ID, Role: u.Role, Known: true, Active: u.Active}, nil
}

// RequireActive admits any registered, active user.
func (g *Gate) RequireActive(ctx context.Context, id string) (Actor, error) {
	a, err := g.Resolve(ctx, id)
	if err != nil {
		return a, err
	}
	if !a.Known || !a.Active {
		return a, errs.ErrPermissionDenied
	}
	return a, nil
}

func (g *Gate) RequireAgentOrAdmin(ctx context.Context, id string) (Actor, error) {
	a, err := g.Resolve(ctx, id)
	if err != nil {
		return a, err
	}
	if !a.IsAgentOrAdmin() {
		return a, errs.ErrPermissionDenied
	}
	return a, nil
}

func (g *Gate) RequireAdmin(ctx context.Context, id string) (Actor, error) {
	a, err := g.Resolve(ctx, id)
	if err != nil {
		return a, err
	}
	if !a.IsAdmin() {
		return a, errs.ErrPermissionDenied
	}
	return a, nil
}
