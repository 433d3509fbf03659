package handler

import (
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// RegisterRequest is the POST /auth/register body. The secret code fixes the
// role; site is optional and only valid for site-bound roles.
type RegisterRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	SecretCode string `json:"secret_code"`
	Site       string `json:"site,omitempty"`
}

func (r *RegisterRequest) Validate() error {
	if r.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required").
			WithField("username", "required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required").
			WithField("password", "required")
	}
	if r.SecretCode == "" {
		return dErrors.New(dErrors.CodeValidation, "secret_code is required").
			WithField("secret_code", "required")
	}
	if r.Site != "" {
		if _, err := id.ParseSiteCode(r.Site); err != nil {
			return err
		}
	}
	return nil
}

// ParsedSite returns the normalized site code, or "" when none was given.
func (r *RegisterRequest) ParsedSite() id.SiteCode {
	if r.Site == "" {
		return ""
	}
	site, _ := id.ParseSiteCode(r.Site)
	return site
}

// LoginRequest is the POST /auth/login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if r.Username == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "username and password are required")
	}
	return nil
}
