package api

import (
	"errors"
	"math/big"
	"sync"

	"perpcore/venue/trade"
)

var errQuoteNotFound = errors.New("api: no quote recorded for request")

// QuoteStore holds oracle price callbacks keyed by request id. It satisfies
// trade.PriceFeed; the settlement core reads quotes, it never requests
// them.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]*trade.Quote
}

// NewQuoteStore returns an empty store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]*trade.Quote)}
}

// Record stores the quote delivered for a request id, replacing any
// earlier delivery.
func (s *QuoteStore) Record(requestID string, price *big.Int, marketClosed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[requestID] = &trade.Quote{
		Price:        new(big.Int).Set(price),
		MarketClosed: marketClosed,
	}
}

// Quote implements trade.PriceFeed.
func (s *QuoteStore) Quote(requestID string) (*trade.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quote, ok := s.quotes[requestID]
	if !ok {
		return nil, errQuoteNotFound
	}
	return &trade.Quote{
		Price:        new(big.Int).Set(quote.Price),
		MarketClosed: quote.MarketClosed,
	}, nil
}

// Drop removes a consumed quote.
func (s *QuoteStore) Drop(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, requestID)
}
