package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	BaseDelayMs    int  // Base delay in milliseconds
	RandomDelayMs  int  // Random jitter range in milliseconds
	DelayOnSuccess bool // If true, delay even on successful login
}

// TimingDelay pads login responses so unknown-account and wrong-password
// failures take about the same time.
type TimingDelay struct {
	config TimingConfig
	sleep  func(time.Duration)
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		sleep:  time.Sleep,
	}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}

func (td *TimingDelay) target() time.Duration {
	base := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		if jitter, err := cryptoRandIntn(td.config.RandomDelayMs); err == nil {
			base += time.Duration(jitter) * time.Millisecond
		}
	}
	return base
}

// WaitFrom sleeps until at least base+jitter has elapsed since start.
// Successful attempts return immediately unless DelayOnSuccess is set.
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if td == nil {
		return
	}
	if success && !td.config.DelayOnSuccess {
		return
	}

	if remaining := td.target() - time.Since(start); remaining > 0 {
		td.sleep(remaining)
	}
}
