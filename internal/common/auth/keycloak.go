// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"loyalty-notify/internal/common/errors"
	commonhttp "loyalty-notify/internal/common/http"
)

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	Subject           string `json:"sub"`
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

type KeycloakClient struct {
	baseURL    string
	realm      string
	httpClient *commonhttp.Client
}

func NewKeycloakClient(baseURL, realm string, timeout time.Duration) *KeycloakClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KeycloakClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		realm:      realm,
		httpClient: commonhttp.NewClient(timeout),
	}
}

// UserInfo resolves a bearer access token through the realm's userinfo endpoint.
func (k *KeycloakClient) UserInfo(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, errors.NewAuthenticationError("missing bearer token")
	}

	userInfoURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/userinfo", k.baseURL, k.realm)
	resp, err := k.httpClient.GetJSON(ctx, userInfoURL, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return nil, errors.NewAuthenticationError(fmt.Sprintf("userinfo request failed: %v", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.NewAuthenticationError("token rejected by identity provider")
	case !resp.IsSuccess():
		return nil, errors.NewAuthenticationError(fmt.Sprintf("userinfo returned status %d", resp.StatusCode))
	}

	var identity Identity
	if err := json.Unmarshal(resp.Body, &identity); err != nil {
		return nil, errors.NewAuthenticationError(fmt.Sprintf("decode userinfo: %v", err))
	}
	if identity.Subject == "" {
		return nil, errors.NewAuthenticationError("userinfo response has no subject")
	}
	return &identity, nil
}
