package config

import (
	"errors"
	"net/url"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type Options struct {
	BaseURL     string   `long:"base-url" env:"FLYWHEEL_BASE_URL" description:"Platform base URL (e.g. https://admin.example.com)"`
	Token       string   `long:"token" env:"FLYWHEEL_TOKEN" description:"Admin API token"`
	AccountID   string   `long:"account-id" env:"FLYWHEEL_ACCOUNT_ID" description:"Admin account identifier"`
	Channels    []string `long:"channel" env:"FLYWHEEL_CHANNELS" env-delim:"," description:"Realtime channel to subscribe (repeatable)"`
	NoReconnect bool     `long:"no-reconnect" env:"FLYWHEEL_NO_RECONNECT" description:"Disable automatic reconnect after involuntary disconnects"`
	Debug       bool     `long:"debug" env:"FLYWHEEL_DEBUG" description:"Enable verbose debug output"`
}

type APIEndpoints struct {
	BaseURL         string
	RealtimeWSURL   string
	RealtimeAuthURL string
	JobsURL         string
	LaunchesURL     string
	TransactionsURL string
	BalancesURL     string
}

const (
	realtimeWSPath   = "/admin/ws"
	realtimeAuthPath = "/admin/realtime/token"
)

func ParseOptions() (Options, error) {
	_ = godotenv.Load()
	opts := Options{}
	if _, err := flags.Parse(&opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func ValidateRequired(opts Options) error {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return errors.New("base URL is required")
	}
	if strings.TrimSpace(opts.Token) == "" {
		return errors.New("admin token is required")
	}
	if strings.TrimSpace(opts.AccountID) == "" {
		return errors.New("account id is required")
	}
	return nil
}

func BuildEndpoints(rawBaseURL string) (APIEndpoints, error) {
	apiBaseURL, err := buildAPIBaseURL(rawBaseURL)
	if err != nil {
		return APIEndpoints{}, err
	}
	wsURL, err := buildRealtimeWSURL(apiBaseURL)
	if err != nil {
		return APIEndpoints{}, err
	}
	return APIEndpoints{
		BaseURL:         apiBaseURL,
		RealtimeWSURL:   wsURL,
		RealtimeAuthURL: apiBaseURL + realtimeAuthPath,
		JobsURL:         apiBaseURL + "/admin/jobs",
		LaunchesURL:     apiBaseURL + "/admin/launches",
		TransactionsURL: apiBaseURL + "/admin/transactions",
		BalancesURL:     apiBaseURL + "/admin/balances",
	}, nil
}

func buildAPIBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	parsed, err := url.Parse(value)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("expected absolute URL like https://example.com")
	}
	if !strings.EqualFold(parsed.Scheme, "http") && !strings.EqualFold(parsed.Scheme, "https") {
		return "", errors.New("base URL scheme must be http or https")
	}

	// Normalize any pasted endpoint/path to canonical API base.
	parsed.Path = "/api"
	parsed.RawPath = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""

	return strings.TrimRight(parsed.String(), "/"), nil
}

// buildRealtimeWSURL derives the realtime endpoint from the API base by
// substituting the scheme and appending the fixed socket path.
func buildRealtimeWSURL(apiBaseURL string) (string, error) {
	parsed, err := url.Parse(apiBaseURL)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", errors.New("base URL scheme must be http or https")
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + realtimeWSPath
	return parsed.String(), nil
}
