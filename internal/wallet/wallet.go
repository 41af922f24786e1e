// Package wallet tracks the single wallet connection the exchange acts for.
package wallet

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cropchain/yield-exchange/internal/model"
)

var ErrInvalidAddress = errors.New("wallet: invalid address")

// Connector establishes a wallet connection. Implementations may block.
type Connector interface {
	Connect(ctx context.Context) (model.WalletState, error)
}

// ContractAddresses are the deployed contract addresses the front-end links to.
type ContractAddresses struct {
	YieldToken     string `json:"yieldToken"`
	Marketplace    string `json:"marketplace"`
	RiskManagement string `json:"riskManagement"`
}

// MockContracts are placeholder deployments used until real contracts exist.
var MockContracts = ContractAddresses{
	YieldToken:     "0x1234567890123456789012345678901234567890",
	Marketplace:    "0x0987654321098765432109876543210987654321",
	RiskManagement: "0x5432109876543210987654321098765432109876",
}

// NormalizeAddress validates a hex address and returns its EIP-55 checksum form.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(addr).Hex(), nil
}

// Session holds the current connection state. Safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	connector Connector
	state     model.WalletState
}

func NewSession(connector Connector) *Session {
	return &Session{connector: connector}
}

// Connect asks the connector for a connection. On failure the previous
// state is kept.
func (s *Session) Connect(ctx context.Context) (model.WalletState, error) {
	st, err := s.connector.Connect(ctx)
	if err != nil {
		return s.State(), err
	}
	addr, err := NormalizeAddress(st.Address)
	if err != nil {
		return s.State(), err
	}
	st.Address = addr
	st.IsConnected = true

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return st, nil
}

// Disconnect resets the session to the zero state.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.state = model.WalletState{}
	s.mu.Unlock()
}

func (s *Session) State() model.WalletState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Address returns the connected address, if any.
func (s *Session) Address() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.state.IsConnected {
		return "", false
	}
	return s.state.Address, true
}
