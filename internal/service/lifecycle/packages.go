package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type SubmitPackageInput struct {
	Title       string          `json:"title"`
	Destination string          `json:"destination"`
	Duration    string          `json:"duration"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	TourStart   *time.Time      `json:"tour_start,omitempty"`
	TourEnd     *time.Time      `json:"tour_end,omitempty"`
}

func (in SubmitPackageInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return domain.Validation("title is required")
	}
	if !positive(in.Price) {
		return domain.Validation("price must be positive")
	}
	if (in.TourStart == nil) != (in.TourEnd == nil) {
		return domain.Validation("tour_start and tour_end must be set together")
	}
	if in.TourStart != nil && domain.Day(*in.TourEnd).Before(domain.Day(*in.TourStart)) {
		return domain.Validation("tour_end is before tour_start")
	}
	return nil
}

func (c *Coordinator) SubmitPackage(ctx context.Context, actor domain.Actor, input SubmitPackageInput) (*domain.Package, error) {
	if err := requireRole(actor, domain.RoleAgent); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	pkg := &domain.Package{
		ID:          c.newID(),
		AgentID:     actor.ID,
		Title:       strings.TrimSpace(input.Title),
		Destination: input.Destination,
		Duration:    input.Duration,
		Description: input.Description,
		Price:       input.Price,
		TourStart:   input.TourStart,
		TourEnd:     input.TourEnd,
		Status:      domain.PackageStatusPending,
	}
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertPackage(ctx, pkg); err != nil {
			return err
		}
		return c.notify(ctx, tx, pkg.ID, packageEvent(domain.EventPackageSubmitted, pkg, actor.ID))
	})
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{"package_id": pkg.ID, "actor_id": actor.ID}).Info("package submitted")
	return pkg, nil
}

// UpdatePackage replaces the package details and sends it back for review.
// Bookings already made keep the amount they were created with.
func (c *Coordinator) UpdatePackage(ctx context.Context, actor domain.Actor, packageID string, input SubmitPackageInput) (*domain.Package, error) {
	if err := requireRole(actor, domain.RoleAgent); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var (
		out         *domain.Package
		wasApproved bool
	)
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		pkg, err := tx.LockPackage(ctx, packageID, false)
		if err != nil {
			return err
		}
		if pkg.AgentID != actor.ID {
			return domain.Forbidden("package %s belongs to another agent", pkg.ID)
		}
		next, ok := domain.NextPackageStatus(pkg.Status, domain.ActionEdit, actor.Role)
		if !ok {
			return domain.InvalidTransition("package is %s, cannot %s", pkg.Status, domain.ActionEdit)
		}

		wasApproved = pkg.Status == domain.PackageStatusApproved
		pkg.Title = strings.TrimSpace(input.Title)
		pkg.Destination = input.Destination
		pkg.Duration = input.Duration
		pkg.Description = input.Description
		pkg.Price = input.Price
		pkg.TourStart = input.TourStart
		pkg.TourEnd = input.TourEnd
		pkg.Status = next
		pkg.DecidedBy = ""
		if err := tx.UpdatePackage(ctx, pkg); err != nil {
			return err
		}
		out = pkg
		return c.notify(ctx, tx, pkg.ID, packageEvent(domain.EventPackageUpdated, pkg, actor.ID))
	})
	if err != nil {
		return nil, err
	}

	if wasApproved {
		c.invalidateCatalog(ctx)
	}
	c.log.WithFields(logrus.Fields{"package_id": out.ID, "actor_id": actor.ID}).Info("package updated")
	return out, nil
}

func (c *Coordinator) DecidePackage(ctx context.Context, actor domain.Actor, packageID string, decision domain.Action) (*domain.Package, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if decision != domain.ActionApprove && decision != domain.ActionReject {
		return nil, domain.Validation("unknown package decision %q", decision)
	}

	eventType := domain.EventPackageApproved
	if decision == domain.ActionReject {
		eventType = domain.EventPackageRejected
	}
	pkg, changed, err := c.transitionPackage(ctx, actor, packageID, decision, nil, eventType)
	if err != nil {
		return nil, err
	}
	if changed && pkg.Status == domain.PackageStatusApproved {
		c.invalidateCatalog(ctx)
	}
	return pkg, nil
}

func (c *Coordinator) RequestPackageDelete(ctx context.Context, actor domain.Actor, packageID string) (*domain.Package, error) {
	if err := requireRole(actor, domain.RoleAgent); err != nil {
		return nil, err
	}

	owner := func(p *domain.Package) error {
		if p.AgentID != actor.ID {
			return domain.Forbidden("package %s belongs to another agent", p.ID)
		}
		return nil
	}
	pkg, changed, err := c.transitionPackage(ctx, actor, packageID, domain.ActionRequestDelete, owner, domain.EventPackageDeleteRequested)
	if err != nil {
		return nil, err
	}
	if changed {
		c.invalidateCatalog(ctx)
	}
	return pkg, nil
}

// FinalizePackageDelete removes a package flagged for deletion. It refuses
// while any booking on the package can still change state, so no booking is
// left pointing at a package that is gone mid-lifecycle.
func (c *Coordinator) FinalizePackageDelete(ctx context.Context, actor domain.Actor, packageID string) (*domain.Package, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}

	var deleted *domain.Package
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		pkg, err := tx.LockPackage(ctx, packageID, false)
		if err != nil {
			return err
		}
		if _, ok := domain.NextPackageStatus(pkg.Status, domain.ActionFinalizeDelete, actor.Role); !ok {
			return domain.InvalidTransition("package is %s, deletion was not requested", pkg.Status)
		}

		live, err := tx.CountLiveBookings(ctx, pkg.ID)
		if err != nil {
			return err
		}
		if live > 0 {
			return domain.InvalidTransition("package has %d active bookings", live)
		}

		if err := tx.DeletePackage(ctx, pkg.ID); err != nil {
			return err
		}
		pkg.DecidedBy = actor.ID
		deleted = pkg
		return c.notify(ctx, tx, pkg.ID, packageEvent(domain.EventPackageDeleted, pkg, actor.ID))
	})
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{"package_id": packageID, "actor_id": actor.ID}).Info("package deleted")
	return deleted, nil
}

// transitionPackage moves a package along one edge of the package state
// machine. changed is false when the package already sits where the action
// leads; nothing is written in that case.
func (c *Coordinator) transitionPackage(
	ctx context.Context,
	actor domain.Actor,
	packageID string,
	action domain.Action,
	authorize func(p *domain.Package) error,
	eventType string,
) (*domain.Package, bool, error) {
	var (
		out     *domain.Package
		changed bool
	)
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		pkg, err := tx.LockPackage(ctx, packageID, false)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(pkg); err != nil {
				return err
			}
		}

		if target, ok := domain.PackageTarget(action, actor.Role); ok && pkg.Status == target {
			out = pkg
			return nil
		}

		next, ok := domain.NextPackageStatus(pkg.Status, action, actor.Role)
		if !ok {
			if pkg.Status == domain.PackageStatusApproved || pkg.Status == domain.PackageStatusRejected {
				if action == domain.ActionApprove || action == domain.ActionReject {
					return domain.InvalidTransition("package already reviewed")
				}
			}
			return domain.InvalidTransition("package is %s, cannot %s", pkg.Status, action)
		}

		pkg.Status = next
		pkg.DecidedBy = actor.ID
		if err := tx.UpdatePackage(ctx, pkg); err != nil {
			return err
		}
		out, changed = pkg, true
		return c.notify(ctx, tx, pkg.ID, packageEvent(eventType, pkg, actor.ID))
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		c.log.WithFields(logrus.Fields{
			"package_id": out.ID,
			"actor_id":   actor.ID,
			"status":     out.Status,
		}).Info("package status changed")
	}
	return out, changed, nil
}
