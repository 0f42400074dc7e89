package config

import (
	"fmt"
	"net/url"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. Backend server URL (required for every operation)
	if c.ServerURL == "" {
		return fmt.Errorf("%w: server_url cannot be empty", ErrInvalidServerURL)
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidServerURL, c.ServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q must use http or https", ErrInvalidServerURL, c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidServerURL, c.ServerURL)
	}

	// 2. Request timeout: 1s to 10min
	if c.RequestTimeout < 1 || c.RequestTimeout > 600 {
		return fmt.Errorf("%w: must be between 1 and 600 seconds, got %d", ErrInvalidTimeout, c.RequestTimeout)
	}

	// 3. Context length: 0 (no history) to 100 messages per query
	if c.ContextLength < 0 || c.ContextLength > 100 {
		return fmt.Errorf("%w: must be between 0 and 100, got %d", ErrInvalidContextLength, c.ContextLength)
	}

	// 4. Upload caps: at least 1, at most 20 per kind
	if c.MaxUploadImages < 1 || c.MaxUploadImages > 20 {
		return fmt.Errorf("%w: max_upload_images must be between 1 and 20, got %d", ErrInvalidUploadCap, c.MaxUploadImages)
	}
	if c.MaxUploadFiles < 1 || c.MaxUploadFiles > 20 {
		return fmt.Errorf("%w: max_upload_files must be between 1 and 20, got %d", ErrInvalidUploadCap, c.MaxUploadFiles)
	}

	// 5. Sample rate: common PCM rates only; the transcription backend
	// resamples anything in this set
	switch c.SampleRate {
	case 8000, 16000, 22050, 44100, 48000:
	default:
		return fmt.Errorf("%w: %d Hz (supported: 8000, 16000, 22050, 44100, 48000)", ErrInvalidSampleRate, c.SampleRate)
	}

	// 6. History debounce: 0 (disabled) to 5s
	if c.HistoryDebounceMS < 0 || c.HistoryDebounceMS > 5000 {
		return fmt.Errorf("%w: must be between 0 and 5000 ms, got %d", ErrInvalidDebounce, c.HistoryDebounceMS)
	}

	// 7. Rate limit: positive rate, positive burst
	if c.RateLimitRPS <= 0 || c.RateLimitRPS > 100 {
		return fmt.Errorf("%w: rate_limit_rps must be between 0 and 100, got %.2f", ErrInvalidRateLimit, c.RateLimitRPS)
	}
	if c.RateLimitBurst < 1 || c.RateLimitBurst > 100 {
		return fmt.Errorf("%w: rate_limit_burst must be between 1 and 100, got %d", ErrInvalidRateLimit, c.RateLimitBurst)
	}

	// 8. Retry policy: 1 attempt means no retries
	if c.RetryAttempts < 1 || c.RetryAttempts > 10 {
		return fmt.Errorf("%w: retry_attempts must be between 1 and 10, got %d", ErrInvalidRetry, c.RetryAttempts)
	}
	if c.RetryBackoffMS < 1 || c.RetryBackoffMS > 60000 {
		return fmt.Errorf("%w: retry_backoff_ms must be between 1 and 60000, got %d", ErrInvalidRetry, c.RetryBackoffMS)
	}

	return nil
}
