package handlers

import "time"

// GetOTPRequest is the body of POST /get-otp.
// Email is accepted as an alias of AccountEmail.
type GetOTPRequest struct {
	AccountEmail string `json:"accountEmail"`
	Email        string `json:"email"`
	Pin          string `json:"pin"`
}

// Account returns the account the request is for
func (r GetOTPRequest) Account() string {
	if r.AccountEmail != "" {
		return r.AccountEmail
	}
	return r.Email
}

// GetOTPResponse carries the code; Source is "otp" for locally generated codes
type GetOTPResponse struct {
	OTP    string `json:"otp"`
	Source string `json:"source,omitempty"`
}

// SyncResponse reports the outcome of a rotation sync
type SyncResponse struct {
	Inspected int `json:"inspected"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Mode      string            `json:"mode"`
	Ledger    string            `json:"ledger"`
	Scheduler map[string]string `json:"scheduler"`
}

// SchedulerStatusResponse represents the scheduler status
type SchedulerStatusResponse struct {
	Status     string       `json:"status"`
	Interval   string       `json:"interval"`
	NextRun    *time.Time   `json:"next_run,omitempty"`
	LastRun    *time.Time   `json:"last_run,omitempty"`
	LastResult SyncResponse `json:"last_result"`
	LastError  string       `json:"last_error,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
