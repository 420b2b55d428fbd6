package model

import "sync/atomic"

var global atomic.Pointer[Registry]

// Global returns the process-wide registry. Until InitGlobal is called it
// is the stock registry from NewDefaultRegistry.
func Global() *Registry {
	if r := global.Load(); r != nil {
		return r
	}
	global.CompareAndSwap(nil, NewDefaultRegistry())
	return global.Load()
}

// InitGlobal installs r as the process-wide registry, replacing any
// previous one. A nil r restores the stock registry on next use.
func InitGlobal(r *Registry) {
	global.Store(r)
}
