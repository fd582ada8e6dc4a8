package trade

// RegisterPendingOrder records a market order awaiting its price callback.
// Orders that never receive one become eligible for timeout cancellation
// after the pair's timeout elapses.
func (e *Engine) RegisterPendingOrder(trader [20]byte, pairIndex, slot uint32, open bool) (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	if _, err := e.pairParams(pairIndex); err != nil {
		return 0, err
	}
	id, err := e.state.NextPendingOrderID()
	if err != nil {
		return 0, err
	}
	order := &PendingOrder{
		ID:          id,
		Trader:      trader,
		PairIndex:   pairIndex,
		Slot:        slot,
		Open:        open,
		PlacedBlock: e.blockHeight,
	}
	if err := e.state.PutPendingOrder(order); err != nil {
		return 0, err
	}
	return id, nil
}

// ResolvePendingOrder drops a resting order once its callback executed.
func (e *Engine) ResolvePendingOrder(id uint64) error {
	if e.state == nil {
		return errNilState
	}
	order, err := e.state.PendingOrder(id)
	if err != nil {
		return err
	}
	if order == nil {
		return errOrderNotFound
	}
	return e.state.DeletePendingOrder(id)
}

// CancelTimedOutOrder removes a resting order whose callback never arrived.
// Open orders are dropped outright. Close orders get a single full close
// re-attempt; if that fails the order is cancelled rather than retried
// again, and the position stays open for a later close.
func (e *Engine) CancelTimedOutOrder(id uint64, requestID string) (CancelReason, error) {
	if e.state == nil {
		return CancelNone, errNilState
	}
	order, err := e.state.PendingOrder(id)
	if err != nil {
		return CancelNone, err
	}
	if order == nil {
		return CancelNone, errOrderNotFound
	}
	params, err := e.pairParams(order.PairIndex)
	if err != nil {
		return CancelNone, err
	}
	if e.blockHeight < order.PlacedBlock+params.OrderTimeoutBlocks {
		return CancelNone, errOrderNotTimedOut
	}
	if err := e.state.DeletePendingOrder(id); err != nil {
		return CancelNone, err
	}

	if order.Open {
		e.emit(NewTradeCancelledEvent(order.Trader, order.PairIndex, CancelTimeout))
		return CancelTimeout, nil
	}

	_, reason, err := e.CloseTrade(order.Trader, order.PairIndex, order.Slot, requestID)
	if err != nil || reason != CancelNone {
		e.emit(NewTradeCancelledEvent(order.Trader, order.PairIndex, CancelTimeout))
		return CancelTimeout, nil
	}
	return CancelNone, nil
}
