// Package handler exposes the authenticated RTSM operations over HTTP. Every
// route delegates to the access service, which owns authorization and scope;
// the handler only decodes, calls, and encodes.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trialgate/internal/access"
	"trialgate/internal/supply"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/httputil"
	"trialgate/pkg/requestcontext"
)

// Handler wires the trial, supply, and admin endpoints to the access service.
type Handler struct {
	service *access.Service
	logger  *slog.Logger
}

func New(service *access.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the authenticated endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/assign_site", h.HandleAssignSite)
	r.Get("/sites", h.HandleListSites)

	r.Route("/trial/participants", func(r chi.Router) {
		r.Post("/", h.HandleEnroll)
		r.Get("/", h.HandleListParticipants)
		r.Get("/code_broken", h.HandleListCodeBroken)
		r.Get("/{participantID}/history", h.HandleHistory)
		r.Post("/{participantID}/screen_failure", h.HandleScreenFailure)
		r.Post("/{participantID}/randomize", h.HandleRandomize)
		r.Post("/{participantID}/complete", h.HandleComplete)
		r.Post("/{participantID}/code_break", h.HandleCodeBreak)
	})

	r.Route("/supply", func(r chi.Router) {
		r.Post("/consignments", h.HandleRaiseConsignment)
		r.Post("/arrivals", h.HandleRecordArrival)
		r.Get("/shipments/pending", h.HandleListPending)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/registration_codes", h.HandleGenerateCodes)
		r.Post("/sites", h.HandleDefineSite)
		r.Delete("/sites/{siteCode}", h.HandleDeleteSite)
	})
}

func (h *Handler) participantID(w http.ResponseWriter, r *http.Request) (id.ParticipantID, bool) {
	pid, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return pid, true
}

func (h *Handler) logFailure(r *http.Request, op string, err error) {
	h.logger.WarnContext(r.Context(), op+" failed",
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err,
	)
}

// HandleEnroll handles POST /trial/participants.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[EnrollRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	p, err := h.service.Enroll(ctx, req.Demographics())
	if err != nil {
		h.logFailure(r, "enroll", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "participant enrolled",
		"request_id", requestcontext.RequestID(ctx),
		"participant_id", p.ID,
		"site", p.Site,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromParticipant(p))
}

// HandleListParticipants handles GET /trial/participants.
func (h *Handler) HandleListParticipants(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListParticipants(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParticipants(out))
}

// HandleListCodeBroken handles GET /trial/participants/code_broken.
func (h *Handler) HandleListCodeBroken(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListCodeBroken(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParticipants(out))
}

// HandleHistory handles GET /trial/participants/{participantID}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	pid, ok := h.participantID(w, r)
	if !ok {
		return
	}
	events, err := h.service.ParticipantHistory(r.Context(), pid)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvents(events))
}

// HandleScreenFailure handles POST /trial/participants/{participantID}/screen_failure.
func (h *Handler) HandleScreenFailure(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "screen failure",
		func(r *http.Request, pid id.ParticipantID, req TransitionRequest) (any, error) {
			p, err := h.service.RecordScreenFailure(r.Context(), pid, req.ParsedDate())
			if err != nil {
				return nil, err
			}
			return FromParticipant(p), nil
		})
}

// HandleComplete handles POST /trial/participants/{participantID}/complete.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "treatment completion",
		func(r *http.Request, pid id.ParticipantID, req TransitionRequest) (any, error) {
			p, err := h.service.CompleteTreatment(r.Context(), pid, req.ParsedDate())
			if err != nil {
				return nil, err
			}
			return FromParticipant(p), nil
		})
}

// HandleCodeBreak handles POST /trial/participants/{participantID}/code_break.
func (h *Handler) HandleCodeBreak(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "code break",
		func(r *http.Request, pid id.ParticipantID, req TransitionRequest) (any, error) {
			p, err := h.service.BreakCode(r.Context(), pid, req.ParsedDate())
			if err != nil {
				return nil, err
			}
			return FromParticipant(p), nil
		})
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, op string,
	call func(*http.Request, id.ParticipantID, TransitionRequest) (any, error)) {

	ctx := r.Context()
	pid, ok := h.participantID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	resp, err := call(r, pid, req)
	if err != nil {
		h.logFailure(r, op, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRandomize handles POST /trial/participants/{participantID}/randomize.
// No body: the allocator picks the pack.
func (h *Handler) HandleRandomize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pid, ok := h.participantID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Randomize(ctx, pid)
	if err != nil {
		h.logFailure(r, "randomize", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "participant randomized",
		"request_id", requestcontext.RequestID(ctx),
		"participant_id", p.ID,
		"pack_id", p.PackID,
	)
	httputil.WriteJSON(w, http.StatusOK, FromParticipant(p))
}

// HandleRaiseConsignment handles POST /supply/consignments.
func (h *Handler) HandleRaiseConsignment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RaiseConsignmentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.RaiseConsignment(ctx, req.ParsedPackID(), req.ParsedSite(), req.ParsedDate())
	if err != nil {
		h.logFailure(r, "raise consignment", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromConsignment(c))
}

// HandleRecordArrival handles POST /supply/arrivals.
func (h *Handler) HandleRecordArrival(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ArrivalRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, err := h.service.RecordArrival(ctx, req.ParsedPackID(), req.ParsedSite(),
		req.ParsedStatus(), req.ParsedDate(), req.Notes)
	if err != nil {
		h.logFailure(r, "record arrival", err)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusCreated
	if a.Status == supply.ArrivalDuplicate {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, FromArrival(a))
}

// HandleListPending handles GET /supply/shipments/pending.
func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListPendingShipments(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromConsignments(out))
}

// HandleGenerateCodes handles POST /admin/registration_codes.
func (h *Handler) HandleGenerateCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[GenerateCodesRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	codes, err := h.service.GenerateRegistrationCodes(ctx, req.ParsedCounts())
	if err != nil {
		h.logFailure(r, "generate registration codes", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromCodes(codes))
}

// HandleDefineSite handles POST /admin/sites.
func (h *Handler) HandleDefineSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DefineSiteRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	site, err := h.service.DefineSite(ctx, req.ParsedCode(), req.Name, req.ParsedStatus(), req.ParsedActivationDate())
	if err != nil {
		h.logFailure(r, "define site", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromSite(site))
}

// HandleDeleteSite handles DELETE /admin/sites/{siteCode}.
func (h *Handler) HandleDeleteSite(w http.ResponseWriter, r *http.Request) {
	code, err := id.ParseSiteCode(chi.URLParam(r, "siteCode"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteSite(r.Context(), code); err != nil {
		h.logFailure(r, "delete site", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListSites handles GET /sites.
func (h *Handler) HandleListSites(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListSites(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSites(out))
}

// HandleAssignSite handles POST /auth/assign_site.
func (h *Handler) HandleAssignSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AssignSiteRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	actor, err := h.service.AssignSite(ctx, req.ParsedSite())
	if err != nil {
		h.logFailure(r, "assign site", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"username": actor.Username,
		"site":     string(actor.Site),
	})
}
