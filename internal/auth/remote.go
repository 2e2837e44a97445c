package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ivanreeve/poop-tracker/internal"
)

// RemoteAuthProvider asks the hosted auth service who owns the token.
type RemoteAuthProvider struct {
	AuthServiceURL string
	APIKey         string
	HTTPClient     *http.Client
	logger         internal.Logger
}

func (a *RemoteAuthProvider) Validate(ctx context.Context, token string) (*internal.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.AuthServiceURL+"/auth/v1/user", nil)
	if err != nil {
		a.logger.Errorf("auth: failed to create request: %v", err)
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if a.APIKey != "" {
		req.Header.Set("apikey", a.APIKey)
	}
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		a.logger.Errorf("auth: failed to call auth service: %v", err)
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		a.logger.Errorf("auth: auth service returned %d", resp.StatusCode)
		return nil, fmt.Errorf("auth service returned %d", resp.StatusCode)
	}
	var id internal.Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		a.logger.Errorf("auth: failed to decode auth response: %v", err)
		return nil, err
	}
	if id.ID == "" {
		return nil, ErrInvalidToken
	}
	return &id, nil
}

func NewRemoteAuthProvider(url, apiKey string, logger internal.Logger) *RemoteAuthProvider {
	return &RemoteAuthProvider{
		AuthServiceURL: strings.TrimRight(url, "/"),
		APIKey:         apiKey,
		HTTPClient:     &http.Client{Timeout: 5 * time.Second},
		logger:         logger,
	}
}
