// Package identity предоставляет клиент для внешнего провайдера идентификации.
// Провайдер обменивает одноразовый код входа на стабильный openid пользователя.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client инкапсулирует HTTP-взаимодействие с провайдером идентификации.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type sessionResponse struct {
	OpenID string `json:"openid"`
}

// NewClient создаёт клиент провайдера идентификации по указанному адресу.
// Обмен кода на openid — идемпотентное чтение, поэтому допустим ограниченный
// повтор при сетевых сбоях.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 1 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc.StandardClient(),
	}
}

// ResolveCode обменивает код входа на стабильный openid пользователя.
func (c *Client) ResolveCode(ctx context.Context, code string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("identity client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	reqURL := fmt.Sprintf("%s/api/session?code=%s", base, url.QueryEscape(code))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if result.OpenID == "" {
		return "", fmt.Errorf("empty openid in response")
	}

	return result.OpenID, nil
}
