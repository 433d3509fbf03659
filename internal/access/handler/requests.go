package handler

import (
	"time"

	"trialgate/internal/participant"
	"trialgate/internal/provisioning"
	"trialgate/internal/supply"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

const dateLayout = time.DateOnly

func parseDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "%s is required", field).
			WithField(field, "required")
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "%s must be a YYYY-MM-DD date", field).
			WithField(field, "bad format")
	}
	return t, nil
}

// EnrollRequest is the POST /trial/participants body.
type EnrollRequest struct {
	EnrollmentDate string `json:"enrollment_date"`
	ConsentDate    string `json:"consent_date"`
	DateOfBirth    string `json:"date_of_birth"`
	Gender         string `json:"gender"`
}

func (r *EnrollRequest) Validate() error {
	if _, err := parseDate("enrollment_date", r.EnrollmentDate); err != nil {
		return err
	}
	if _, err := parseDate("consent_date", r.ConsentDate); err != nil {
		return err
	}
	if _, err := parseDate("date_of_birth", r.DateOfBirth); err != nil {
		return err
	}
	if r.Gender == "" {
		return dErrors.New(dErrors.CodeValidation, "gender is required").
			WithField("gender", "required")
	}
	return nil
}

// Demographics converts the validated request to the domain input.
func (r *EnrollRequest) Demographics() participant.Demographics {
	enrollment, _ := time.Parse(dateLayout, r.EnrollmentDate)
	consent, _ := time.Parse(dateLayout, r.ConsentDate)
	dob, _ := time.Parse(dateLayout, r.DateOfBirth)
	return participant.Demographics{
		EnrollmentDate: enrollment,
		ConsentDate:    consent,
		DateOfBirth:    dob,
		Gender:         r.Gender,
	}
}

// TransitionRequest is the body of screen_failure, complete, and code_break.
type TransitionRequest struct {
	Date string `json:"date"`
}

func (r *TransitionRequest) Validate() error {
	_, err := parseDate("date", r.Date)
	return err
}

func (r *TransitionRequest) ParsedDate() time.Time {
	t, _ := time.Parse(dateLayout, r.Date)
	return t
}

// RaiseConsignmentRequest is the POST /supply/consignments body.
type RaiseConsignmentRequest struct {
	PackID string `json:"pack_id"`
	Site   string `json:"site"`
	Date   string `json:"date"`
}

func (r *RaiseConsignmentRequest) Validate() error {
	if _, err := id.ParsePackID(r.PackID); err != nil {
		return err
	}
	if _, err := id.ParseSiteCode(r.Site); err != nil {
		return err
	}
	_, err := parseDate("date", r.Date)
	return err
}

func (r *RaiseConsignmentRequest) ParsedPackID() id.PackID {
	p, _ := id.ParsePackID(r.PackID)
	return p
}

func (r *RaiseConsignmentRequest) ParsedSite() id.SiteCode {
	s, _ := id.ParseSiteCode(r.Site)
	return s
}

func (r *RaiseConsignmentRequest) ParsedDate() time.Time {
	t, _ := time.Parse(dateLayout, r.Date)
	return t
}

// ArrivalRequest is the POST /supply/arrivals body. Status is the condition
// observed on landing; unrecognized values are rejected before any write.
// Site is required for depot actors and optional for site-bound actors, whose
// own site is authoritative.
type ArrivalRequest struct {
	PackID string `json:"pack_id"`
	Status string `json:"status"`
	Date   string `json:"date"`
	Site   string `json:"site,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

func (r *ArrivalRequest) Validate() error {
	if _, err := id.ParsePackID(r.PackID); err != nil {
		return err
	}
	if _, err := supply.ParseArrivalStatus(r.Status); err != nil {
		return err
	}
	if r.Site != "" {
		if _, err := id.ParseSiteCode(r.Site); err != nil {
			return err
		}
	}
	_, err := parseDate("date", r.Date)
	return err
}

func (r *ArrivalRequest) ParsedPackID() id.PackID {
	p, _ := id.ParsePackID(r.PackID)
	return p
}

func (r *ArrivalRequest) ParsedStatus() supply.ArrivalStatus {
	s, _ := supply.ParseArrivalStatus(r.Status)
	return s
}

func (r *ArrivalRequest) ParsedSite() id.SiteCode {
	if r.Site == "" {
		return ""
	}
	s, _ := id.ParseSiteCode(r.Site)
	return s
}

func (r *ArrivalRequest) ParsedDate() time.Time {
	t, _ := time.Parse(dateLayout, r.Date)
	return t
}

// GenerateCodesRequest is the POST /admin/registration_codes body: how many
// codes to mint per role.
type GenerateCodesRequest struct {
	Counts map[string]int `json:"counts"`
}

func (r *GenerateCodesRequest) Validate() error {
	if len(r.Counts) == 0 {
		return dErrors.New(dErrors.CodeValidation, "counts is required").
			WithField("counts", "required")
	}
	for role := range r.Counts {
		if _, err := id.ParseRole(role); err != nil {
			return err
		}
	}
	return nil
}

func (r *GenerateCodesRequest) ParsedCounts() map[id.Role]int {
	out := make(map[id.Role]int, len(r.Counts))
	for role, n := range r.Counts {
		parsed, _ := id.ParseRole(role)
		out[parsed] += n
	}
	return out
}

// DefineSiteRequest is the POST /admin/sites body.
type DefineSiteRequest struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	ActivationDate string `json:"activation_date"`
}

func (r *DefineSiteRequest) Validate() error {
	if _, err := id.ParseSiteCode(r.Code); err != nil {
		return err
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required").
			WithField("name", "required")
	}
	if _, err := provisioning.ParseSiteStatus(r.Status); err != nil {
		return err
	}
	_, err := parseDate("activation_date", r.ActivationDate)
	return err
}

func (r *DefineSiteRequest) ParsedCode() id.SiteCode {
	c, _ := id.ParseSiteCode(r.Code)
	return c
}

func (r *DefineSiteRequest) ParsedStatus() provisioning.SiteStatus {
	s, _ := provisioning.ParseSiteStatus(r.Status)
	return s
}

func (r *DefineSiteRequest) ParsedActivationDate() time.Time {
	t, _ := time.Parse(dateLayout, r.ActivationDate)
	return t
}

// AssignSiteRequest is the POST /auth/assign_site body.
type AssignSiteRequest struct {
	Site string `json:"site"`
}

func (r *AssignSiteRequest) Validate() error {
	_, err := id.ParseSiteCode(r.Site)
	return err
}

func (r *AssignSiteRequest) ParsedSite() id.SiteCode {
	s, _ := id.ParseSiteCode(r.Site)
	return s
}
