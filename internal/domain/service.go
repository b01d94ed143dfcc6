package domain

import (
	"errors"
	"net/url"
	"time"
)

// ServiceRegistration is a remote analysis service known to the system.
// Registrations come from configuration; only the health monitor mutates
// the health fields and counters.
type ServiceRegistration struct {
	Name          string     `json:"name"`
	BaseURL       string     `json:"base_url"`
	Active        bool       `json:"active"`
	Healthy       bool       `json:"healthy"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	// TotalRequests and FailedRequests only ever grow.
	TotalRequests  int64     `json:"total_requests"`
	FailedRequests int64     `json:"failed_requests"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validation errors for ServiceRegistration.
var (
	ErrEmptyServiceName = errors.New("service name cannot be empty")
	ErrInvalidBaseURL   = errors.New("service base URL must be an absolute http(s) URL")
)

// Validate checks the configured fields of a registration.
func (s *ServiceRegistration) Validate() error {
	if s.Name == "" {
		return ErrEmptyServiceName
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}
	return nil
}

// HealthResult is the outcome of probing one registration.
type HealthResult struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
}
