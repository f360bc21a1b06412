package signalr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoReconnectionNeverRetries(t *testing.T) {
	p := NoReconnection()
	_, ok := p.next()
	assert.False(t, ok)
}

func TestConstantReconnectionRespectsMaxAttempts(t *testing.T) {
	p := ConstantReconnection(100*time.Millisecond, 3)

	for i := 0; i < 3; i++ {
		d, ok := p.next()
		require.True(t, ok)
		assert.Equal(t, 100*time.Millisecond, d)
	}

	_, ok := p.next()
	assert.False(t, ok)
}

func TestLinearReconnectionIncreasesLinearly(t *testing.T) {
	p := LinearReconnection(time.Second, 500*time.Millisecond, 0)

	d1, ok := p.next()
	require.True(t, ok)
	assert.Equal(t, time.Second, d1)

	d2, ok := p.next()
	require.True(t, ok)
	assert.Equal(t, time.Second+500*time.Millisecond, d2)

	d3, ok := p.next()
	require.True(t, ok)
	assert.Equal(t, time.Second+time.Second, d3)
}

func TestExponentialReconnectionCapsAtMax(t *testing.T) {
	p := ExponentialReconnection(time.Second, 2.0, 4*time.Second, 0)

	d1, _ := p.next()
	d2, _ := p.next()
	d3, _ := p.next()
	d4, _ := p.next()

	assert.Equal(t, time.Second, d1)
	assert.Equal(t, 2*time.Second, d2)
	assert.Equal(t, 4*time.Second, d3)
	assert.Equal(t, 4*time.Second, d4) // capped
}

func TestReconnectionPolicyResetRestartsSequence(t *testing.T) {
	p := LinearReconnection(time.Second, time.Second, 0)

	first, _ := p.next()
	p.next()
	p.reset()
	afterReset, _ := p.next()

	assert.Equal(t, first, afterReset)
}
