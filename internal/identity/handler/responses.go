package handler

import "trialgate/internal/identity"

// ActorResponse is the public view of an actor; the credential never leaves
// the service.
type ActorResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Site     string `json:"site,omitempty"`
}

func FromActor(a *identity.Actor) ActorResponse {
	return ActorResponse{
		Username: a.Username,
		Role:     string(a.Role),
		Site:     string(a.Site),
	}
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	Actor       ActorResponse `json:"actor"`
}
