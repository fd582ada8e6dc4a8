package common

import "errors"

// ErrModulePaused rejects any state transition against a paused module.
var ErrModulePaused = errors.New("module paused")

// Module names recognised by the pause switchboard.
const (
	ModuleFunding = "funding"
	ModuleVault   = "vault"
	ModuleTrade   = "trade"
)

// PauseView exposes the pause switchboard maintained outside the core.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the calling operation when its module is paused. A nil view
// or empty module name means pausing is not wired and the guard passes.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
