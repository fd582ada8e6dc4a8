package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
)

var errInsufficientFunds = errors.New("storage: insufficient ledger balance")

// AccountLedger is a book-entry ledger of settlement-asset balances keyed
// by address. One house account anchors it: Pull moves funds from an
// external party into the house account, Push the other way. The vault and
// trade engines each run their own instance with their own house account
// over the same database.
type AccountLedger struct {
	mu    sync.Mutex
	db    Database
	house [20]byte
}

// NewAccountLedger returns a ledger anchored at the supplied house account.
func NewAccountLedger(db Database, house [20]byte) *AccountLedger {
	return &AccountLedger{db: db, house: house}
}

func balanceKey(addr [20]byte) []byte {
	return []byte("ledger/balance/" + hex.EncodeToString(addr[:]))
}

// Balance returns the current balance of an address, zero when unseen.
func (l *AccountLedger) Balance(addr [20]byte) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(addr)
}

func (l *AccountLedger) balance(addr [20]byte) (*big.Int, error) {
	key := balanceKey(addr)
	ok, err := l.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	raw, err := l.db.Get(key)
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(raw, balance); err != nil {
		return nil, fmt.Errorf("storage: decode balance: %w", err)
	}
	return balance, nil
}

func (l *AccountLedger) setBalance(addr [20]byte, balance *big.Int) error {
	raw, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	return l.db.Put(balanceKey(addr), raw)
}

// Credit adds externally sourced funds to an address. It is the deposit
// on-ramp; settlement itself only ever moves existing balances.
func (l *AccountLedger) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.New("storage: credit amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, err := l.balance(addr)
	if err != nil {
		return err
	}
	return l.setBalance(addr, balance.Add(balance, amount))
}

func (l *AccountLedger) transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("storage: transfer amount must not be negative")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBalance, err := l.balance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	toBalance, err := l.balance(to)
	if err != nil {
		return err
	}
	if err := l.setBalance(from, fromBalance.Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.setBalance(to, toBalance.Add(toBalance, amount))
}

// Pull moves funds from an external party into the house account.
func (l *AccountLedger) Pull(from [20]byte, amount *big.Int) error {
	return l.transfer(from, l.house, amount)
}

// Push moves funds from the house account to an external party.
func (l *AccountLedger) Push(to [20]byte, amount *big.Int) error {
	return l.transfer(l.house, to, amount)
}

// PullFromTrader is Pull under the trade engine's ledger contract.
func (l *AccountLedger) PullFromTrader(trader [20]byte, amount *big.Int) error {
	return l.Pull(trader, amount)
}

// PushToTrader is Push under the trade engine's ledger contract.
func (l *AccountLedger) PushToTrader(trader [20]byte, amount *big.Int) error {
	return l.Push(trader, amount)
}
