package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ProviderMagic is the identity key recorded for magic-link sign-ins.
const ProviderMagic = "magic"

// defaultMagicBaseURL is the hosted magic-link provider's API root.
const defaultMagicBaseURL = "https://api.magic.link"

// MagicProvider validates magic-link DID tokens against the hosted
// provider's user lookup endpoint.
type MagicProvider struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewMagicProvider constructs a MagicProvider. BaseURL is overridable so
// tests can point it at a local server.
func NewMagicProvider(secretKey, baseURL string) (*MagicProvider, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("identity: magic secret key not configured")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultMagicBaseURL
	}
	return &MagicProvider{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// magicUserResponse is the provider's user lookup payload.
type magicUserResponse struct {
	Data struct {
		Email  string `json:"email"`
		Issuer string `json:"issuer"`
	} `json:"data"`
	Status string `json:"status"`
}

// Validate checks a DID token with the provider and returns the profile it
// belongs to.
func (p *MagicProvider) Validate(ctx context.Context, didToken string) (Profile, error) {
	didToken = strings.TrimSpace(didToken)
	if didToken == "" {
		return Profile{}, fmt.Errorf("identity: empty did token")
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/admin/auth/user/get", nil)
	if errReq != nil {
		return Profile{}, fmt.Errorf("identity: build request: %w", errReq)
	}
	req.Header.Set("X-Magic-Secret-Key", p.secretKey)
	req.Header.Set("Authorization", "Bearer "+didToken)

	resp, errDo := p.client.Do(req)
	if errDo != nil {
		return Profile{}, fmt.Errorf("identity: magic lookup: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("identity: magic lookup status %d", resp.StatusCode)
	}

	var body magicUserResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&body); errDecode != nil {
		return Profile{}, fmt.Errorf("identity: decode magic response: %w", errDecode)
	}
	if body.Data.Email == "" {
		return Profile{}, fmt.Errorf("identity: magic response missing email")
	}

	return Profile{
		Provider: ProviderMagic,
		Subject:  body.Data.Issuer,
		Email:    strings.ToLower(strings.TrimSpace(body.Data.Email)),
	}, nil
}
