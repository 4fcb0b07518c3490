package httptransport

type AcquireGuardRequest struct {
	Wallet    string `json:"wallet"`
	Mode      string `json:"mode"`
	CountryID int64  `json:"countryId"`
	Amount    string `json:"amount"`
}

type AdmitOnboardingRequest struct {
	Wallet string `json:"wallet"`
}

type MarkSentRequest struct {
	LockKey string `json:"lockKey"`
	Status  string `json:"status"`
}

type ReleaseGuardRequest struct {
	LockKey string `json:"lockKey"`
}

type GuardResponse struct {
	OK        bool   `json:"ok"`
	LockKey   string `json:"lockKey"`
	Status    string `json:"status,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

type ReleaseGuardResponse struct {
	OK       bool `json:"ok"`
	Released bool `json:"released"`
}

type ErrorResponse struct {
	OK                bool   `json:"ok"`
	Reason            string `json:"reason"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}
