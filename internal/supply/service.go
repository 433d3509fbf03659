package supply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trialgate/internal/ledger"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/requestcontext"
)

// Service owns the consignment chain. Role checks happen in the access layer;
// this service enforces the depot inventory rules, the one-consignment and
// one-arrival invariants, and ledger emission for every chain action.
type Service struct {
	store  Store
	events *ledger.Publisher
}

func NewService(store Store, events *ledger.Publisher) *Service {
	return &Service{store: store, events: events}
}

// RaiseConsignment ships a pack from the depot to a site. A pack absent from
// depot inventory fails with a depot inventory error and writes nothing;
// there is never a dangling consignment without its pack move.
func (s *Service) RaiseConsignment(ctx context.Context, packID id.PackID, destination id.SiteCode, date time.Time) (*Consignment, error) {
	if date.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "raise date is required").
			WithField("date", "required")
	}

	now := requestcontext.Now(ctx)
	raisedBy := ""
	if ident, ok := requestcontext.ActorIdentity(ctx); ok {
		raisedBy = ident.Username
	}

	c, err := s.store.Raise(ctx, packID,
		func(p *Pack) error { return p.CanRaise() },
		func(p *Pack) *Consignment {
			p.ApplyRaise(destination, now)
			return &Consignment{
				PackID:    packID,
				Site:      destination,
				Status:    ConsignmentRaised,
				RaiseDate: date,
				RaisedBy:  raisedBy,
				CreatedAt: now,
			}
		},
	)
	if err != nil {
		return nil, wrapRaiseErr(err, packID)
	}

	err = s.events.Emit(ctx, ledger.Event{
		Site:        destination,
		Type:        ledger.EventConsignmentRaised,
		Description: fmt.Sprintf("consignment %s raised for pack %s to %s", c.ID, packID, destination),
		Details: map[string]string{
			"consignment_id": string(c.ID),
			"pack_id":        string(packID),
			"raise_date":     date.Format(time.DateOnly),
		},
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// RecordArrival records what a site observed when a shipment landed. The
// consignment is resolved within the caller's site only; a pack pending for
// another site reads as not eligible. Resubmitting an already-arrived pack is
// a benign duplicate, not an error, and writes nothing.
func (s *Service) RecordArrival(ctx context.Context, scope id.Scope, packID id.PackID,
	observed ArrivalStatus, date time.Time, notes string) (*Arrival, error) {

	if date.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "arrival date is required").
			WithField("date", "required")
	}
	switch observed {
	case ArrivalArrived, ArrivalDamaged, ArrivalQuarantined:
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unrecognized arrival status %q", observed).
			WithField("status", "must be arrived, damaged, or quarantined")
	}
	site := scope.Site()
	if site == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "arrivals are recorded against a destination site")
	}

	now := requestcontext.Now(ctx)
	recordedBy := ""
	if ident, ok := requestcontext.ActorIdentity(ctx); ok {
		recordedBy = ident.Username
	}

	a, err := s.store.Arrive(ctx, packID, site,
		func(c *Consignment, p *Pack) *Arrival {
			p.ApplyArrival(observed, now)
			return &Arrival{
				PackID:        packID,
				ConsignmentID: c.ID,
				Site:          site,
				Status:        observed,
				ArrivalDate:   date,
				Notes:         notes,
				RecordedBy:    recordedBy,
				RecordedAt:    now,
			}
		},
	)
	switch {
	case errors.Is(err, sentinel.ErrDuplicate):
		// a is the stored arrival; report the resubmission as Duplicate
		// without touching the record.
		dup := *a
		dup.Status = ArrivalDuplicate
		return &dup, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotEligible, "no pending consignment for this pack at your site").
			WithRecord(string(packID))
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record arrival").
			WithRecord(string(packID))
	}

	err = s.events.Emit(ctx, ledger.Event{
		Site:        site,
		Type:        ledger.EventArrivalRecorded,
		Description: fmt.Sprintf("arrival recorded for pack %s at %s (%s)", packID, site, a.Status),
		Details: map[string]string{
			"consignment_id": string(a.ConsignmentID),
			"pack_id":        string(packID),
			"status":         string(a.Status),
			"arrival_date":   date.Format(time.DateOnly),
		},
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListPendingShipments returns consignments awaiting arrival. Site-bound
// scopes see only their own destination; the global scope sees every site.
func (s *Service) ListPendingShipments(ctx context.Context, scope id.Scope) ([]*Consignment, error) {
	out, err := s.store.ListPending(ctx, scope.Site())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending shipments")
	}
	return out, nil
}

// SeedPacks loads n catalog packs (BYL001..) into depot inventory as
// Available. Already-seeded packs are left untouched, so reseeding at startup
// is idempotent.
func (s *Service) SeedPacks(ctx context.Context, n int) error {
	now := requestcontext.Now(ctx)
	for i := 1; i <= n; i++ {
		p := &Pack{
			ID:        FormatPackID(i),
			Status:    PackAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := s.store.CreatePack(ctx, p)
		if err != nil && !errors.Is(err, sentinel.ErrDuplicate) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed packs").
				WithRecord(string(p.ID))
		}
	}
	return nil
}

// ReferencesSite reports whether the supply chain holds any consignment for
// the site. Provisioning uses this to refuse deleting referenced sites.
func (s *Service) ReferencesSite(ctx context.Context, site id.SiteCode) (bool, error) {
	return s.store.ReferencesSite(ctx, site)
}

func wrapRaiseErr(err error, packID id.PackID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeDepotUnavailable, "pack is not present in depot inventory").
			WithRecord(string(packID))
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeDepotUnavailable, "pack already has a consignment").
			WithRecord(string(packID))
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "supply store failure").
			WithRecord(string(packID))
	}
}
