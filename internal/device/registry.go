package device

import "sync"

// Registry caches devices discovered by the Compiler Gateway, keyed by their
// stable fingerprint. It does not talk to the driver itself; callers
// populate it via Refresh.
type Registry struct {
	mu      sync.RWMutex
	devices map[uint32]Device
	order   []uint32 // discovery order, for deterministic iteration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[uint32]Device)}
}

// Refresh replaces the cached device set.
func (r *Registry) Refresh(devices []Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[uint32]Device, len(devices))
	r.order = r.order[:0]
	for _, d := range devices {
		r.devices[d.ID] = d
		r.order = append(r.order, d.ID)
	}
}

// All returns the cached devices in discovery order.
func (r *Registry) All() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id])
	}
	return out
}

// Lookup returns the device with the given fingerprint, if cached.
func (r *Registry) Lookup(id uint32) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	return d, ok
}

// MostPowerful returns the cached device with the highest PowerIndex. The
// second return value is false if the registry is empty.
func (r *Registry) MostPowerful() (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		best    Device
		found   bool
		bestPwr uint64
	)
	for _, id := range r.order {
		d := r.devices[id]
		if !found || d.PowerIndex > bestPwr {
			best, bestPwr, found = d, d.PowerIndex, true
		}
	}
	return best, found
}
