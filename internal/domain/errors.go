package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across stores, orchestrator and queue.
var (
	ErrNotFound           = errors.New("not found")
	ErrCampaignNotFound   = fmt.Errorf("campaign %w", ErrNotFound)
	ErrEmailListNotFound  = fmt.Errorf("email list %w", ErrNotFound)
	ErrConflictingState   = errors.New("conflicting campaign state")
	ErrDuplicateEmail     = errors.New("DUPLICATE_EMAIL: already recorded for this campaign and day")
	ErrStaleJob           = errors.New("stale job")
	ErrCampaignNotRunning = errors.New("campaign not running")
	ErrMalformedEvent     = errors.New("malformed provider event")
)

// ValidationError reports a rejected input field. No state changes when one
// is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Validate checks a configuration before create/update. Returns the first
// violation found.
func (c *Configuration) Validate() error {
	if len(c.Domains) == 0 {
		return &ValidationError{Field: "domains", Reason: "at least one domain is required"}
	}
	if c.BaseDailyTotal < 1 {
		return &ValidationError{Field: "base_daily_total", Reason: "must be >= 1"}
	}
	if c.TargetSum < c.BaseDailyTotal {
		return &ValidationError{Field: "target_sum", Reason: "must be >= base_daily_total"}
	}
	if c.QuotaDays < 1 {
		return &ValidationError{Field: "quota_days", Reason: "must be >= 1"}
	}
	if c.MaxEmailPercentage < 1 || c.MaxEmailPercentage > 100 {
		return &ValidationError{Field: "max_email_percentage", Reason: "must be in [1,100]"}
	}
	if c.RandomizationIntensity < 0 || c.RandomizationIntensity > 1 {
		return &ValidationError{Field: "randomization_intensity", Reason: "must be in [0,1]"}
	}
	switch c.EmailListSource {
	case ListSourceGlobal:
	case ListSourceCustom:
		if c.CustomEmailListID == "" {
			return &ValidationError{Field: "custom_email_list_id", Reason: "required when email_list_source is custom"}
		}
	default:
		return &ValidationError{Field: "email_list_source", Reason: "must be global or custom"}
	}
	for i, s := range c.SenderEmails {
		if err := ValidateSender(s); err != nil {
			return &ValidationError{Field: fmt.Sprintf("sender_emails[%d]", i), Reason: err.Error()}
		}
	}
	return nil
}

// ValidateSender checks one sender identity entry.
func ValidateSender(s SenderEmail) error {
	addr := NewEmailAddress(s.Email)
	if addr.Domain == "" {
		return fmt.Errorf("invalid email address %q", s.Email)
	}
	if s.Domain != "" && addr.Domain != s.Domain {
		return fmt.Errorf("email domain %q does not match declared domain %q", addr.Domain, s.Domain)
	}
	return nil
}
