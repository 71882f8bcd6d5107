package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"flywheel-console/internal/logging"
	"flywheel-console/internal/realtime"
)

type realtimeTokenResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
}

// FetchRealtimeCredentials exchanges the admin API token for a short-lived
// realtime auth payload. This is the credential provider the realtime client
// consumes; it never refreshes credentials on its own.
func (c *ConsoleClient) FetchRealtimeCredentials(ctx context.Context) (realtime.Credentials, error) {
	c.logger.Debug("requesting realtime credentials", logging.Field("url", c.endpoints.RealtimeAuthURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.RealtimeAuthURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		return realtime.Credentials{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return realtime.Credentials{}, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("realtime credential request failed",
			logging.Field("status", resp.Status),
			logging.Field("response", logging.Truncate(string(data))),
		)
		return realtime.Credentials{}, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	payload := realtimeTokenResponse{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return realtime.Credentials{}, fmt.Errorf("invalid realtime credential response: %w", err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		return realtime.Credentials{}, errors.New("missing realtime token")
	}

	c.logger.Debug("realtime credentials acquired", logging.Field("account_id", payload.AccountID))
	return realtime.Credentials{Token: payload.Token, AccountID: payload.AccountID}, nil
}
