package heygen

import (
	"context"
	"errors"
	"net/http"
)

var ErrNoAPIKey = errors.New("vendor api key not configured")

// TokenIssuer mints short-lived streaming credentials with the server's API key.
type TokenIssuer struct {
	api    *API
	apiKey string
}

func NewTokenIssuer(api *API, apiKey string) *TokenIssuer {
	return &TokenIssuer{api: api, apiKey: apiKey}
}

func (t *TokenIssuer) AccessToken(ctx context.Context) (string, error) {
	if t.apiKey == "" {
		return "", ErrNoAPIKey
	}
	h := http.Header{}
	h.Set("X-Api-Key", t.apiKey)

	var out struct {
		Token string `json:"token"`
	}
	if err := t.api.call(ctx, pathCreateToken, h, nil, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("vendor returned empty token")
	}
	return out.Token, nil
}
