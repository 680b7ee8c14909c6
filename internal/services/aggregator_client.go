package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	intconfig "marketplace/internal/config"
)

const (
	aggregatorSandboxURL    = "https://api.sandbox.aggregator.example"
	aggregatorProductionURL = "https://api.aggregator.example"

	configCacheTTL = 10 * time.Minute
)

// AggregatorClient talks to the external mobile-money aggregator. All calls
// carry the bearer API key and a bounded timeout.
type AggregatorClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	// Active provider configuration is cached with an explicit value +
	// fetchedAt pair instead of package-level state.
	cfgMu        sync.Mutex
	cachedConfig AggregatorConfig
	cfgFetchedAt time.Time
}

// NewAggregatorClient resolves the base URL from the configured environment.
func NewAggregatorClient(env intconfig.Env) *AggregatorClient {
	base := env.AggregatorBaseURL
	if base == "" {
		if env.AggregatorEnv == "production" {
			base = aggregatorProductionURL
		} else {
			base = aggregatorSandboxURL
		}
	}
	return &AggregatorClient{
		BaseURL: base,
		APIKey:  env.AggregatorAPIKey,
		HTTP:    &http.Client{Timeout: env.AggregatorTimeout},
	}
}

// AggregatorConfig is the provider's active configuration (correspondents,
// currencies) used to validate initiation requests.
type AggregatorConfig struct {
	Correspondents []CorrespondentConfig `json:"correspondents"`
	FetchedAt      time.Time             `json:"-"`
}

type CorrespondentConfig struct {
	Correspondent  string   `json:"correspondent"`
	Country        string   `json:"country"`
	Currencies     []string `json:"currencies"`
	OperationTypes []string `json:"operationTypes"`
}

// InitiationRequest starts a deposit or payout with the aggregator.
type InitiationRequest struct {
	TransactionID     string `json:"transactionId"`
	Amount            string `json:"amount"` // smallest currency unit
	Currency          string `json:"currency"`
	Country           string `json:"country"`
	Correspondent     string `json:"correspondent"`
	Address           string `json:"address"` // msisdn
	InternalReference string `json:"internalReference"`
	StatementNote     string `json:"statementDescription,omitempty"`
}

// TransactionStatus is the provider's view of one transaction.
type TransactionStatus struct {
	TransactionID   string `json:"transactionId"`
	Status          string `json:"status"`
	RequestedAmount string `json:"requestedAmount"`
	DepositedAmount string `json:"depositedAmount"`
	Currency        string `json:"currency"`
	FailureReason   struct {
		FailureCode    string `json:"failureCode"`
		FailureMessage string `json:"failureMessage"`
	} `json:"failureReason"`
}

func (c *AggregatorClient) InitiateDeposit(ctx context.Context, req InitiationRequest) (TransactionStatus, error) {
	return c.postStatus(ctx, "/deposits", req)
}

func (c *AggregatorClient) InitiatePayout(ctx context.Context, req InitiationRequest) (TransactionStatus, error) {
	return c.postStatus(ctx, "/payouts", req)
}

func (c *AggregatorClient) InitiateRefund(ctx context.Context, depositID string) (TransactionStatus, error) {
	return c.postStatus(ctx, "/refunds", map[string]string{"depositId": depositID})
}

// FetchStatus pulls the authoritative status for a transaction, used by the
// admin recheck path when a callback went missing or failed processing.
func (c *AggregatorClient) FetchStatus(ctx context.Context, txType, transactionID string) (TransactionStatus, error) {
	path := "/deposits/"
	switch txType {
	case "PAYOUT":
		path = "/payouts/"
	case "REFUND":
		path = "/refunds/"
	}

	var out []TransactionStatus
	if err := c.doJSON(ctx, http.MethodGet, path+transactionID, nil, &out); err != nil {
		return TransactionStatus{}, err
	}
	if len(out) == 0 {
		return TransactionStatus{}, fmt.Errorf("transaksi %s tidak ditemukan di provider", transactionID)
	}
	return out[0], nil
}

// ActiveConfiguration returns the provider configuration, refreshing the
// cache only when it is older than the TTL.
func (c *AggregatorClient) ActiveConfiguration(ctx context.Context) (AggregatorConfig, error) {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()

	if !c.cfgFetchedAt.IsZero() && time.Since(c.cfgFetchedAt) < configCacheTTL {
		return c.cachedConfig, nil
	}

	var cfg AggregatorConfig
	if err := c.doJSON(ctx, http.MethodGet, "/active-conf", nil, &cfg); err != nil {
		// serve stale config on refresh failure if we have one
		if !c.cfgFetchedAt.IsZero() {
			return c.cachedConfig, nil
		}
		return AggregatorConfig{}, err
	}
	cfg.FetchedAt = time.Now().UTC()
	c.cachedConfig = cfg
	c.cfgFetchedAt = cfg.FetchedAt
	return cfg, nil
}

func (c *AggregatorClient) postStatus(ctx context.Context, path string, body any) (TransactionStatus, error) {
	var out TransactionStatus
	if err := c.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return TransactionStatus{}, err
	}
	return out, nil
}

func (c *AggregatorClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode aggregator request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build aggregator request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("aggregator call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("aggregator %s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode aggregator response: %w", err)
	}
	return nil
}
