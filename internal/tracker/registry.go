package tracker

import (
	"fmt"
	"sort"
	"sync"

	"uplink/internal/services"
)

// Builder constructs an adapter for one run. Builders are registered at
// init time and looked up by tracker id.
type Builder func(id string, env Env) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Builder{}
)

// Register installs a builder under the given tracker id. Registering the
// same id twice panics: duplicate registrations are programmer errors.
func Register(id string, build Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[id]; dup {
		panic(fmt.Sprintf("tracker: duplicate registration for %q", id))
	}
	registry[id] = build
}

// New builds the adapter registered for id.
func New(id string, env Env) (Adapter, error) {
	registryMu.RLock()
	build, ok := registry[id]
	registryMu.RUnlock()
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, id, "registry", "no adapter registered for tracker", nil)
	}
	return build(id, env)
}

// Supported reports whether an adapter is registered for id.
func Supported(id string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[id]
	return ok
}

// IDs lists the registered tracker ids in sorted order.
func IDs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
