package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/chainbot/internal/chain"
)

var _ chain.Observer = (*Metrics)(nil)

func TestCounters(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveMessage(nil)
	m.ObserveMessage(errors.New("boom"))
	m.ObserveMessage(nil)
	m.ObserveCommand("balance", nil)
	m.ObserveChainCall(chain.MethodTransfer, 20*time.Millisecond, errors.New("timeout"))
	m.AccountCreated()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues(ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("balance", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chainCalls.WithLabelValues(chain.MethodTransfer, ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.accountsCreated))
}

func TestDuplicateRegistration(t *testing.T) {
	r := prometheus.NewRegistry()
	_, err := New(r)
	require.NoError(t, err)

	_, err = New(r)
	assert.Error(t, err)
}
