package rbac

import (
	"context"
	"errors"

	"chepochem.org/internal/audit"
	"chepochem.org/internal/obs"
)

// ResourceTypeListing is the only resource type the ownership-scoped
// capability pair applies to.
const ResourceTypeListing = "listing"

// OwnershipLookup resolves the owning actor of a resource without coupling
// the engine to concrete entity schemas.
type OwnershipLookup interface {
	OwnerOf(ctx context.Context, resourceType, resourceID string) (string, error)
}

// Engine decides whether an actor may perform an action on an optionally
// specified resource. It is side-effect-free aside from audit recording of
// denials, so it is safe to call speculatively.
type Engine struct {
	catalog *Catalog
	owners  OwnershipLookup
	trail   *audit.Trail
}

// NewEngine constructs an Engine. The ownership lookup may be nil when no
// ownership-scoped capability will ever be checked.
func NewEngine(catalog *Catalog, owners OwnershipLookup, trail *audit.Trail) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("rbac: catalog is required")
	}
	if trail == nil {
		return nil, errors.New("rbac: audit trail is required")
	}
	return &Engine{catalog: catalog, owners: owners, trail: trail}, nil
}

// Check returns nil when the actor may perform the capability, possibly
// against the referenced resource. It returns ErrUnauthenticated for
// anonymous actors, a *DeniedError for authenticated actors lacking the
// capability or ownership, and ErrNotFound when the referenced resource
// does not exist.
//
// Denials for authenticated actors are recorded in the audit trail with
// event kind permission_denied. Pre-authentication failures are not
// audited.
func (e *Engine) Check(ctx context.Context, actor Actor, capability Capability, resourceType, resourceID string) error {
	if actor.IsAnonymous() {
		return ErrUnauthenticated
	}
	if !actor.Active {
		return e.deny(ctx, actor, capability, resourceType, resourceID, ReasonAccountDisabled)
	}

	// Deliberate superuser escape hatch: admin passes every check before
	// any capability-specific rule runs. Kept as an explicit first case so
	// the rule stays visible and auditable.
	if actor.Role == RoleAdmin {
		return nil
	}

	if capability.OwnershipScoped() {
		if resourceType != ResourceTypeListing || resourceID == "" {
			return e.deny(ctx, actor, capability, resourceType, resourceID, ReasonInsufficientPermission)
		}
		if e.owners == nil {
			return e.deny(ctx, actor, capability, resourceType, resourceID, ReasonInsufficientPermission)
		}
		ownerID, err := e.owners.OwnerOf(ctx, resourceType, resourceID)
		if err != nil {
			return err
		}
		if ownerID != actor.ID {
			return e.deny(ctx, actor, capability, resourceType, resourceID, ReasonInsufficientPermission)
		}
		return nil
	}

	if e.catalog.Has(actor.Role, capability) {
		return nil
	}
	return e.deny(ctx, actor, capability, resourceType, resourceID, ReasonInsufficientPermission)
}

func (e *Engine) deny(ctx context.Context, actor Actor, capability Capability, resourceType, resourceID, reason string) error {
	obs.CountPermissionDenial(string(capability))
	e.trail.TryAppend(ctx, audit.Entry{
		ActorID:    actor.ID,
		Action:     "permission_denied",
		EntityType: resourceType,
		EntityID:   resourceID,
		Detail: map[string]any{
			"capability": string(capability),
			"role":       actor.Role.String(),
			"reason":     reason,
		},
	})
	return &DeniedError{Capability: capability, Reason: reason}
}
