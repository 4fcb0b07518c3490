package httptransport

type SubmitClaimRequest struct {
	Wallet  string `json:"wallet"`
	ClaimID string `json:"claimId"`
	Amount  string `json:"amount"`
	Token   string `json:"token"`
}

type SubmitClaimResponse struct {
	OK             bool   `json:"ok"`
	AlreadyClaimed bool   `json:"alreadyClaimed,omitempty"`
	CapDeferred    bool   `json:"capDeferred,omitempty"`
	IdempoKey      string `json:"idempoKey"`
	Status         string `json:"status"`
}

type ClaimDTO struct {
	ID          string `json:"id"`
	Wallet      string `json:"wallet"`
	Amount      string `json:"amount"`
	Token       string `json:"token"`
	ClaimID     string `json:"claimId"`
	IdempoKey   string `json:"idempoKey"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	ClaimedAt   string `json:"claimedAt"`
	LeaseAt     string `json:"leaseAt,omitempty"`
	ProcessedAt string `json:"processedAt,omitempty"`
	TxRef       string `json:"txRef,omitempty"`
	Error       string `json:"error,omitempty"`
}

type GetClaimResponse struct {
	OK    bool     `json:"ok"`
	Claim ClaimDTO `json:"claim"`
}

type CapUsageDTO struct {
	Used      string `json:"used"`
	Cap       string `json:"cap"`
	Remaining string `json:"remaining"`
}

type ClaimsHealthResponse struct {
	Pending              int64                  `json:"pending"`
	Processing           int64                  `json:"processing"`
	Completed            int64                  `json:"completed"`
	Failed               int64                  `json:"failed"`
	ProcessingLagSeconds int64                  `json:"processingLagSeconds"`
	DailyCapUsage        map[string]CapUsageDTO `json:"dailyCapUsage"`
}

type ErrorResponse struct {
	OK                bool   `json:"ok"`
	Reason            string `json:"reason"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}
