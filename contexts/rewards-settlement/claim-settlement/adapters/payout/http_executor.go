package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainerrors "claimguard/contexts/rewards-settlement/claim-settlement/domain/errors"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"
)

type executeRequest struct {
	ClaimID        string `json:"claimId"`
	Wallet         string `json:"wallet"`
	Amount         string `json:"amount"`
	Token          string `json:"token"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type executeResponse struct {
	TxRef string `json:"txRef"`
	Error string `json:"error,omitempty"`
}

// HTTPExecutor posts payouts to an external executor service. The
// Idempotency-Key header carries the claim key so the executor can collapse
// replays after a lease recovery.
type HTTPExecutor struct {
	endpoint string
	client   *http.Client
}

func NewHTTPExecutor(endpoint string, client *http.Client) *HTTPExecutor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPExecutor{endpoint: strings.TrimRight(endpoint, "/"), client: client}
}

func (e *HTTPExecutor) Execute(ctx context.Context, req ports.PayoutRequest) (ports.PayoutResult, error) {
	body, err := json.Marshal(executeRequest{
		ClaimID:        req.ClaimID,
		Wallet:         req.Wallet,
		Amount:         req.Amount,
		Token:          req.Token,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return ports.PayoutResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.PayoutResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return ports.PayoutResult{}, fmt.Errorf("%w: %v", domainerrors.ErrPayoutRetryable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ports.PayoutResult{}, fmt.Errorf("%w: read response: %v", domainerrors.ErrPayoutRetryable, err)
	}

	var decoded executeResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil && resp.StatusCode < 300 {
			return ports.PayoutResult{}, fmt.Errorf("%w: decode response: %v", domainerrors.ErrPayoutRetryable, err)
		}
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return ports.PayoutResult{}, fmt.Errorf("%w: executor status %d %s", domainerrors.ErrPayoutRetryable, resp.StatusCode, decoded.Error)
	case resp.StatusCode >= 400:
		return ports.PayoutResult{}, fmt.Errorf("%w: executor status %d %s", domainerrors.ErrPayoutRejected, resp.StatusCode, decoded.Error)
	}
	if strings.TrimSpace(decoded.TxRef) == "" {
		return ports.PayoutResult{}, errors.Join(domainerrors.ErrPayoutRetryable, errors.New("executor returned empty txRef"))
	}
	return ports.PayoutResult{TxRef: decoded.TxRef}, nil
}
