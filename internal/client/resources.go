package client

import (
	"context"
	"encoding/json"
)

// JobSummary is the trimmed job row the console mirrors for operators.
type JobSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// LaunchSummary is the trimmed bot-launch row the console mirrors.
type LaunchSummary struct {
	ID     string `json:"id"`
	Token  string `json:"token"`
	Status string `json:"status"`
}

// TransactionSummary is the trimmed transaction row the console mirrors.
type TransactionSummary struct {
	ID     string `json:"id"`
	Token  string `json:"token"`
	Status string `json:"status"`
}

// BalanceSummary is one wallet balance row the console mirrors.
type BalanceSummary struct {
	Wallet string `json:"wallet"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func (c *ConsoleClient) FetchJobs(ctx context.Context) ([]JobSummary, error) {
	data, err := c.get(ctx, c.endpoints.JobsURL)
	if err != nil {
		return nil, err
	}
	var out []JobSummary
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ConsoleClient) FetchLaunches(ctx context.Context) ([]LaunchSummary, error) {
	data, err := c.get(ctx, c.endpoints.LaunchesURL)
	if err != nil {
		return nil, err
	}
	var out []LaunchSummary
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ConsoleClient) FetchTransactions(ctx context.Context) ([]TransactionSummary, error) {
	data, err := c.get(ctx, c.endpoints.TransactionsURL)
	if err != nil {
		return nil, err
	}
	var out []TransactionSummary
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ConsoleClient) FetchBalances(ctx context.Context) ([]BalanceSummary, error) {
	data, err := c.get(ctx, c.endpoints.BalancesURL)
	if err != nil {
		return nil, err
	}
	var out []BalanceSummary
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

