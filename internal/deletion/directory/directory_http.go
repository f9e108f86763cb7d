package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"lethe/internal/deletion/models"
	"lethe/pkg/platform/sentinel"
)

// HTTPDirectory talks to the identity provider's admin API. A 404 from the
// provider maps to sentinel.ErrNotFound so the worker can treat an absent
// principal as idempotent success.
type HTTPDirectory struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTP(baseURL, token string, timeout time.Duration) *HTTPDirectory {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDirectory{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type principalPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Disabled    bool   `json:"disabled"`
}

func (d *HTTPDirectory) Lookup(ctx context.Context, userID string) (*models.Principal, error) {
	resp, err := d.do(ctx, http.MethodGet, userID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload principalPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode principal: %w", err)
		}
		return &models.Principal{
			ID:          payload.ID,
			Email:       payload.Email,
			DisplayName: payload.DisplayName,
			Disabled:    payload.Disabled,
		}, nil
	case http.StatusNotFound:
		return nil, sentinel.ErrNotFound
	default:
		return nil, fmt.Errorf("identity store lookup %s: %w", resp.Status, sentinel.ErrUnavailable)
	}
}

func (d *HTTPDirectory) Delete(ctx context.Context, userID string) error {
	resp, err := d.do(ctx, http.MethodDelete, userID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return sentinel.ErrNotFound
	default:
		return fmt.Errorf("identity store delete %s: %w", resp.Status, sentinel.ErrUnavailable)
	}
}

func (d *HTTPDirectory) do(ctx context.Context, method, userID string) (*http.Response, error) {
	endpoint := fmt.Sprintf("%s/admin/v1/users/%s", d.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build identity store request: %w", err)
	}
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity store request: %w", err)
	}
	return resp, nil
}
