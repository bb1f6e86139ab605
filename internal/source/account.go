package source

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"fedirelay/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// VerifyCredentials looks up the account the token belongs to. It backs
// the "auto" user setting.
func VerifyCredentials(ctx context.Context, client HTTPClient, instance, token string) (*model.Account, error) {
	u := "https://" + instance + "/api/v1/accounts/verify_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	account, err := model.ParseAccount(body)
	if err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}
	return account, nil
}
