package client

import (
	"context"
	"io"
	"net/http"

	"flywheel-console/internal/config"
	"flywheel-console/internal/logging"
)

// ConsoleClient wraps the platform's admin REST endpoints: realtime credential
// issuance and the cache refetches driven by invalidation events.
type ConsoleClient struct {
	http      *http.Client
	token     string
	endpoints config.APIEndpoints
	logger    *logging.Logger
}

func New(httpClient *http.Client, token string, endpoints config.APIEndpoints, logger *logging.Logger) *ConsoleClient {
	if logger == nil {
		panic("client.New: logger must not be nil")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ConsoleClient{http: httpClient, token: token, endpoints: endpoints, logger: logger}
}

func (c *ConsoleClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	c.logger.Debugf("GET %s -> %s", url, resp.Status)

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("admin API request failed",
			logging.Field("url", url),
			logging.Field("status", resp.Status),
			logging.Field("response", logging.Truncate(string(data))),
		)
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return data, nil
}
