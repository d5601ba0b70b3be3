// Package txengine is the reference Tx Engine collaborator: an in-memory,
// per-address integer balance ledger used to exercise the submission
// service's send/faucet/balance routes end to end. Value-proof-of-burn
// ledger internals are out of scope; balances here are plain counters.
package txengine

import (
	"errors"
	"sync"
)

// Classified validation errors the submission service maps to API error
// codes of the same name.
var (
	ErrInsufficientBalance  = errors.New("insufficient_balance")
	ErrAmountExceedsLimit   = errors.New("amount_exceeds_limit")
	ErrRecipientRequired    = errors.New("recipient_required")
	ErrAmountMustBePositive = errors.New("amount_must_be_positive")
)

// MaxAmount is the default per-transaction ceiling enforced by Send and
// Faucet when New is called without an override.
const MaxAmount int64 = 1_000_000_000

// Result describes the outcome of a successful send or faucet credit.
type Result struct {
	TxHash     string
	SubmitHash string
	Amount     int64
	Recipient  string
	Status     string
}

// Engine is an in-memory per-address balance ledger. It intentionally owns
// no idempotency state: duplicate-submission detection is the submission
// service's responsibility, layered in front of Send.
type Engine struct {
	mu        sync.Mutex
	balances  map[string]int64
	hashFn    func() string
	maxAmount int64
}

// New returns an Engine using hashFn to mint tx/submit hashes. hashFn must
// be supplied by the caller since the engine itself must stay deterministic
// and free of wall-clock/randomness dependencies for testing. An optional
// maxAmount overrides the default per-transaction ceiling (MaxAmount); pass
// none, or a non-positive value, to keep the default.
func New(hashFn func() string, maxAmount ...int64) *Engine {
	ceiling := MaxAmount
	if len(maxAmount) > 0 && maxAmount[0] > 0 {
		ceiling = maxAmount[0]
	}
	return &Engine{
		balances:  make(map[string]int64),
		hashFn:    hashFn,
		maxAmount: ceiling,
	}
}

// Balance returns the current balance for address, defaulting to zero.
func (e *Engine) Balance(address string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[address]
}

// Faucet credits amount to address, used to seed test/demo balances.
func (e *Engine) Faucet(address string, amount int64) (Result, error) {
	if amount <= 0 {
		return Result{}, ErrAmountMustBePositive
	}
	if amount > e.maxAmount {
		return Result{}, ErrAmountExceedsLimit
	}
	e.mu.Lock()
	e.balances[address] += amount
	e.mu.Unlock()

	txHash := e.hashFn()
	return Result{
		TxHash:     txHash,
		SubmitHash: txHash,
		Amount:     amount,
		Recipient:  address,
		Status:     "submitted",
	}, nil
}

// Send debits amount from sender and credits recipient, failing closed on
// any validation error without mutating balances.
func (e *Engine) Send(sender, recipient string, amount int64) (Result, error) {
	if recipient == "" {
		return Result{}, ErrRecipientRequired
	}
	if amount <= 0 {
		return Result{}, ErrAmountMustBePositive
	}
	if amount > e.maxAmount {
		return Result{}, ErrAmountExceedsLimit
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.balances[sender] < amount {
		return Result{}, ErrInsufficientBalance
	}
	e.balances[sender] -= amount
	e.balances[recipient] += amount

	txHash := e.hashFn()
	return Result{
		TxHash:     txHash,
		SubmitHash: txHash,
		Amount:     amount,
		Recipient:  recipient,
		Status:     "submitted",
	}, nil
}
