// Package purchase validates purchase requests and classifies the outcome
// of a settlement attempt.
package purchase

import (
	"context"
	"errors"

	"github.com/cropchain/yield-exchange/internal/model"
)

var (
	ErrInvalidAmount = errors.New("purchase: amount must be a positive whole number")
	ErrExceedsSupply = errors.New("purchase: amount exceeds available supply")
)

// Settlement executes a purchase against the chain or its stand-in.
// true means settled, false means declined; an error means the outcome
// is unknown.
type Settlement interface {
	Purchase(ctx context.Context, tokenID string, amount int64) (bool, error)
}

// Outcome classifies a purchase attempt.
type Outcome string

const (
	Completed           Outcome = "completed"
	ValidationRejected  Outcome = "validation_rejected"
	TransactionDeclined Outcome = "transaction_declined"
	NetworkError        Outcome = "network_error"
)

// Result is the tagged result of one purchase attempt.
type Result struct {
	Outcome  Outcome         `json:"outcome"`
	Reason   string          `json:"reason,omitempty"`
	Purchase *model.Purchase `json:"purchase,omitempty"`
	Token    *model.Token    `json:"token,omitempty"`
}

func (r Result) OK() bool { return r.Outcome == Completed }

// Rejected builds a validation_rejected result from err.
func Rejected(err error) Result {
	return Result{Outcome: ValidationRejected, Reason: err.Error()}
}

// Validate checks a requested amount against the units still on offer.
func Validate(amount, available int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > available {
		return ErrExceedsSupply
	}
	return nil
}

// Settle calls s and maps its answer to an outcome. A Completed result
// carries no Purchase yet; the caller records it.
func Settle(ctx context.Context, s Settlement, tokenID string, amount int64) Result {
	ok, err := s.Purchase(ctx, tokenID, amount)
	switch {
	case err != nil:
		return Result{Outcome: NetworkError, Reason: err.Error()}
	case !ok:
		return Result{Outcome: TransactionDeclined, Reason: "transaction declined"}
	}
	return Result{Outcome: Completed}
}
