// Package provider contains the deterministic stand-ins for the wallet,
// settlement and catalog collaborators, plus the demo fixtures.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cropchain/yield-exchange/internal/model"
)

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var ErrNoWalletConfigured = errors.New("provider: no wallet address configured")

// FixtureConnector connects to a fixed wallet after Latency.
type FixtureConnector struct {
	Address string
	Balance decimal.Decimal
	Network string
	Latency time.Duration
}

func (c FixtureConnector) Connect(ctx context.Context) (model.WalletState, error) {
	if err := Wait(ctx, c.Latency); err != nil {
		return model.WalletState{}, err
	}
	if c.Address == "" {
		return model.WalletState{}, ErrNoWalletConfigured
	}
	return model.WalletState{
		IsConnected: true,
		Address:     c.Address,
		Balance:     c.Balance,
		Network:     c.Network,
	}, nil
}

// FixtureSettlement settles every purchase after Latency except for
// tokens listed in Declined, which are declined.
type FixtureSettlement struct {
	Latency  time.Duration
	Declined map[string]bool
}

// NewFixtureSettlement builds a settlement that declines the given token ids.
func NewFixtureSettlement(latency time.Duration, declined []string) *FixtureSettlement {
	s := &FixtureSettlement{Latency: latency, Declined: make(map[string]bool, len(declined))}
	for _, id := range declined {
		s.Declined[id] = true
	}
	return s
}

func (s *FixtureSettlement) Purchase(ctx context.Context, tokenID string, amount int64) (bool, error) {
	if err := Wait(ctx, s.Latency); err != nil {
		return false, err
	}
	return !s.Declined[tokenID], nil
}
