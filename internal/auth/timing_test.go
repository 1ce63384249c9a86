package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func recordingDelay(config TimingConfig) (*TimingDelay, *[]time.Duration) {
	var slept []time.Duration
	td := NewTimingDelay(config)
	td.sleep = func(d time.Duration) { slept = append(slept, d) }
	return td, &slept
}

func TestTimingDelay_WaitFrom_OnFailure(t *testing.T) {
	td, slept := recordingDelay(TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50})

	td.WaitFrom(time.Now(), false)

	assert.Len(t, *slept, 1)
	assert.LessOrEqual(t, (*slept)[0], 150*time.Millisecond)
	assert.Greater(t, (*slept)[0], 90*time.Millisecond)
}

func TestTimingDelay_WaitFrom_SuccessSkipsDelay(t *testing.T) {
	td, slept := recordingDelay(TimingConfig{BaseDelayMs: 100})

	td.WaitFrom(time.Now(), true)

	assert.Empty(t, *slept)
}

func TestTimingDelay_WaitFrom_DelayOnSuccess(t *testing.T) {
	td, slept := recordingDelay(TimingConfig{BaseDelayMs: 100, DelayOnSuccess: true})

	td.WaitFrom(time.Now(), true)

	assert.Len(t, *slept, 1)
}

func TestTimingDelay_WaitFrom_ElapsedAlreadyCovered(t *testing.T) {
	td, slept := recordingDelay(TimingConfig{BaseDelayMs: 100})

	td.WaitFrom(time.Now().Add(-time.Second), false)

	assert.Empty(t, *slept)
}

func TestTimingDelay_NilIsNoop(t *testing.T) {
	var td *TimingDelay
	assert.NotPanics(t, func() { td.WaitFrom(time.Now(), false) })
}

func TestCryptoRandIntn(t *testing.T) {
	for i := 0; i < 100; i++ {
		n, err := cryptoRandIntn(10)
		assert.NoError(t, err)
		assert.True(t, n >= 0 && n < 10)
	}

	n, err := cryptoRandIntn(0)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}
