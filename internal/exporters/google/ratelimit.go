package google

import (
	"golang.org/x/time/rate"
)

// ServiceType identifies a Google API service for rate limiting purposes.
type ServiceType string

const (
	// ServiceGmail is the Gmail API service.
	ServiceGmail ServiceType = "gmail"
	// ServiceCalendar is the Google Calendar API service.
	ServiceCalendar ServiceType = "calendar"
)

// Conservative defaults, well below Google's actual per-user quotas.
var defaultRateLimits = map[ServiceType]struct {
	perSecond float64
	burst     int
}{
	ServiceGmail:    {perSecond: 2.0, burst: 5},
	ServiceCalendar: {perSecond: 5.0, burst: 10},
}

// NewRateLimiter creates a token-bucket limiter for the given service.
func NewRateLimiter(service ServiceType) *rate.Limiter {
	cfg, ok := defaultRateLimits[service]
	if !ok {
		cfg.perSecond, cfg.burst = 5.0, 10
	}
	return rate.NewLimiter(rate.Limit(cfg.perSecond), cfg.burst)
}
