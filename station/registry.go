package station

import "sync"

// Registry tracks the serial devices currently owned by reader sessions.
// It is injected into the scanner so separate scanner instances never share
// device state through a package-level variable.
type Registry struct {
	mutex   sync.Mutex
	devices map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]struct{})}
}

// Add claims a device. It returns false if the device is already claimed.
func (r *Registry) Add(device string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.devices[device]; ok {
		return false
	}
	r.devices[device] = struct{}{}
	return true
}

func (r *Registry) Remove(device string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.devices, device)
}

func (r *Registry) Has(device string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	_, ok := r.devices[device]
	return ok
}

func (r *Registry) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.devices)
}
