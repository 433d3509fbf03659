package handler

import (
	"time"

	"trialgate/internal/ledger"
	"trialgate/internal/participant"
	"trialgate/internal/provisioning"
	"trialgate/internal/supply"
)

func formatDate(t time.Time) string { return t.Format(time.DateOnly) }

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

// ParticipantResponse is the public view of a participant record.
type ParticipantResponse struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	Site           string `json:"site"`
	Status         string `json:"status"`
	EnrollmentDate string `json:"enrollment_date"`
	ConsentDate    string `json:"consent_date"`
	DateOfBirth    string `json:"date_of_birth"`
	Gender         string `json:"gender"`
	PackID         string `json:"pack_id,omitempty"`
	ScreenFailedAt string `json:"screen_failure_date,omitempty"`
	CompletedAt    string `json:"completion_date,omitempty"`
	CodeBrokenAt   string `json:"code_break_date,omitempty"`
}

func FromParticipant(p *participant.Participant) ParticipantResponse {
	return ParticipantResponse{
		ID:             string(p.ID),
		Label:          p.Label,
		Site:           string(p.Site),
		Status:         string(p.Status),
		EnrollmentDate: formatDate(p.EnrollmentDate),
		ConsentDate:    formatDate(p.ConsentDate),
		DateOfBirth:    formatDate(p.DateOfBirth),
		Gender:         p.Gender,
		PackID:         string(p.PackID),
		ScreenFailedAt: formatDatePtr(p.ScreenFailedAt),
		CompletedAt:    formatDatePtr(p.CompletedAt),
		CodeBrokenAt:   formatDatePtr(p.CodeBrokenAt),
	}
}

func FromParticipants(ps []*participant.Participant) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, FromParticipant(p))
	}
	return out
}

// ConsignmentResponse is the public view of a consignment.
type ConsignmentResponse struct {
	ID        string `json:"id"`
	PackID    string `json:"pack_id"`
	Site      string `json:"site"`
	Status    string `json:"status"`
	RaiseDate string `json:"raise_date"`
	RaisedBy  string `json:"raised_by"`
}

func FromConsignment(c *supply.Consignment) ConsignmentResponse {
	return ConsignmentResponse{
		ID:        string(c.ID),
		PackID:    string(c.PackID),
		Site:      string(c.Site),
		Status:    string(c.Status),
		RaiseDate: formatDate(c.RaiseDate),
		RaisedBy:  c.RaisedBy,
	}
}

func FromConsignments(cs []*supply.Consignment) []ConsignmentResponse {
	out := make([]ConsignmentResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, FromConsignment(c))
	}
	return out
}

// ArrivalResponse is the outcome of recording an arrival. Duplicate marks a
// benign resubmission.
type ArrivalResponse struct {
	PackID        string `json:"pack_id"`
	ConsignmentID string `json:"consignment_id"`
	Site          string `json:"site"`
	Status        string `json:"status"`
	ArrivalDate   string `json:"arrival_date"`
	Notes         string `json:"notes,omitempty"`
}

func FromArrival(a *supply.Arrival) ArrivalResponse {
	return ArrivalResponse{
		PackID:        string(a.PackID),
		ConsignmentID: string(a.ConsignmentID),
		Site:          string(a.Site),
		Status:        string(a.Status),
		ArrivalDate:   formatDate(a.ArrivalDate),
		Notes:         a.Notes,
	}
}

// SiteResponse is the public view of a site definition.
type SiteResponse struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	ActivationDate string `json:"activation_date"`
}

func FromSite(s *provisioning.Site) SiteResponse {
	return SiteResponse{
		Code:           string(s.Code),
		Name:           s.Name,
		Status:         string(s.Status),
		ActivationDate: formatDate(s.ActivationDate),
	}
}

func FromSites(ss []*provisioning.Site) []SiteResponse {
	out := make([]SiteResponse, 0, len(ss))
	for _, s := range ss {
		out = append(out, FromSite(s))
	}
	return out
}

// CodeResponse is one freshly minted registration code. This is the only
// moment the code is ever shown.
type CodeResponse struct {
	Code string `json:"code"`
	Role string `json:"role"`
}

func FromCodes(codes []provisioning.RegistrationCode) []CodeResponse {
	out := make([]CodeResponse, 0, len(codes))
	for _, c := range codes {
		out = append(out, CodeResponse{Code: c.Code, Role: string(c.Role)})
	}
	return out
}

// EventResponse is one ledger entry in a participant's history.
type EventResponse struct {
	Type        string            `json:"type"`
	Description string            `json:"description"`
	Details     map[string]string `json:"details,omitempty"`
	RecordedBy  string            `json:"recorded_by"`
	RecordedAt  time.Time         `json:"recorded_at"`
}

func FromEvents(events []ledger.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			Type:        string(e.Type),
			Description: e.Description,
			Details:     e.Details,
			RecordedBy:  e.RecordedBy,
			RecordedAt:  e.RecordedAt,
		})
	}
	return out
}
