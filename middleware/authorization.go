package middleware

import (
	"context"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/pipeline"
	"github.com/goliatone/go-conduit/scope"
)

// PrincipalItem is the store item key holding the current Principal.
const PrincipalItem = "conduit.principal"

// Principal is whoever a message is executed for.
type Principal interface {
	ID() string
	HasPermission(permission string) bool
}

// SetPrincipal stores p as the principal of the current execution.
func SetPrincipal(s *scope.Store, p Principal) {
	s.SetItem(PrincipalItem, p)
}

// PrincipalFrom returns the principal of the current execution.
func PrincipalFrom(s *scope.Store) (Principal, bool) {
	v, ok := s.Item(PrincipalItem)
	if !ok {
		return nil, false
	}
	p, ok := v.(Principal)
	return p, ok && p != nil
}

// AuthorizationConfig lists the permissions every execution needs.
type AuthorizationConfig struct {
	Permissions []string
	// AllowAnonymous lets executions without a principal through when no
	// permission is required.
	AllowAnonymous bool
}

// Authorization rejects executions whose principal lacks a required
// permission with an error carrying conduit.ErrCodeUnauthorized.
type Authorization[M, R any] struct{}

func NewAuthorization[M, R any]() *Authorization[M, R] {
	return &Authorization[M, R]{}
}

// RequirePermission adds permission to the Authorization middleware of p.
// It does nothing when p has no Authorization middleware.
func RequirePermission[M, R any](p *pipeline.Pipeline[M, R], permission string) bool {
	return pipeline.Configure[*Authorization[M, R]](p, func(cfg AuthorizationConfig) AuthorizationConfig {
		perms := make([]string, 0, len(cfg.Permissions)+1)
		perms = append(perms, cfg.Permissions...)
		cfg.Permissions = append(perms, permission)
		return cfg
	})
}

func (a *Authorization[M, R]) Execute(ctx context.Context, call *pipeline.Call[M, R], cfg AuthorizationConfig) (R, error) {
	var zero R
	principal, ok := PrincipalFrom(call.Store)
	if !ok {
		if cfg.AllowAnonymous && len(cfg.Permissions) == 0 {
			return call.Next(ctx, call.Message)
		}
		return zero, conduit.CloneError(conduit.ErrUnauthorized, "no principal for message", nil, map[string]any{
			"message_type": conduit.GetMessageType(call.Message),
		})
	}

	for _, perm := range cfg.Permissions {
		if !principal.HasPermission(perm) {
			return zero, conduit.CloneError(conduit.ErrUnauthorized, "principal lacks permission "+perm, nil, map[string]any{
				"message_type": conduit.GetMessageType(call.Message),
				"principal":    principal.ID(),
				"permission":   perm,
			})
		}
	}
	return call.Next(ctx, call.Message)
}
