package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropchain/yield-exchange/internal/model"
)

const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type stubConnector struct {
	state model.WalletState
	err   error
}

func (c stubConnector) Connect(context.Context) (model.WalletState, error) {
	return c.state, c.err
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress(" 0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed ")
	require.NoError(t, err)
	assert.Equal(t, checksummed, got)

	for _, bad := range []string{"", "0x123", "not-an-address", "0xZZaeb6053f3e94c9b9a09f33669435e7ef1beaed"} {
		_, err := NormalizeAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, "address %q", bad)
	}
}

func TestSession_ConnectDisconnect(t *testing.T) {
	s := NewSession(stubConnector{state: model.WalletState{
		Address: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		Balance: decimal.RequireFromString("1.245"),
		Network: "Ethereum",
	}})

	_, ok := s.Address()
	assert.False(t, ok)

	st, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsConnected)
	assert.Equal(t, checksummed, st.Address)

	addr, ok := s.Address()
	assert.True(t, ok)
	assert.Equal(t, checksummed, addr)

	s.Disconnect()
	assert.Equal(t, model.WalletState{}, s.State())
}

func TestSession_FailedConnectKeepsState(t *testing.T) {
	s := NewSession(stubConnector{state: model.WalletState{Address: checksummed}})
	before, err := s.Connect(context.Background())
	require.NoError(t, err)

	s.connector = stubConnector{err: errors.New("user rejected")}
	st, err := s.Connect(context.Background())
	assert.Error(t, err)
	assert.Equal(t, before, st)
	assert.Equal(t, before, s.State())

	s.connector = stubConnector{state: model.WalletState{Address: "garbage"}}
	_, err = s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Equal(t, before, s.State())
}
