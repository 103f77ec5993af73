// Package registry holds the set of flows a running GRIMOIRE process
// knows about, keyed by flow id, so a flow_call step can look up the
// sub-flow it names (§4.7): a name-keyed map with Register/Get and a
// directory-backed loader, generalized from "named tool adapters" to
// "named flow documents".
package registry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wyrdbound/grimoire/dsl"
	"github.com/wyrdbound/grimoire/internal/grimerr"
	"github.com/wyrdbound/grimoire/model"
)

// Registry is a concurrency-safe, flow-id-keyed lookup table.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]*model.Flow
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{flows: make(map[string]*model.Flow)}
}

// Register adds or replaces a flow under its own ID.
func (r *Registry) Register(flow *model.Flow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[flow.ID] = flow
}

// Get looks up a flow by id, returning a grimerr.UnknownFlow error if
// absent.
func (r *Registry) Get(id string) (*model.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	flow, ok := r.flows[id]
	if !ok {
		return nil, grimerr.New(grimerr.UnknownFlow, id)
	}
	return flow, nil
}

// IDs returns every registered flow id, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.flows))
	for id := range r.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadDir walks dir (non-recursive) for *.yaml/*.yml flow files, loading
// and validating each one (dsl.Load) and registering it under its own
// Flow.ID. Returns the first load error encountered; flows loaded before
// the failing one remain registered.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		flow, err := dsl.Load(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		r.Register(flow)
	}
	return nil
}
