package miners

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// Registry holds the available miners by name. Lookups for miners that
// were never registered (a provider without credentials, say) return a
// no-op that reports ERROR, so routing code never branches on nil.
type Registry struct {
	mu     sync.RWMutex
	miners map[models.MinerName]interfaces.Miner
	logger arbor.ILogger
}

// NewRegistry creates an empty miner registry
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		miners: make(map[models.MinerName]interfaces.Miner),
		logger: logger,
	}
}

// Register adds a miner under its own name
func (r *Registry) Register(miner interfaces.Miner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.miners[miner.Name()] = miner
}

// Get returns the named miner, or a not-available stand-in
func (r *Registry) Get(name models.MinerName) interfaces.Miner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if miner, ok := r.miners[name]; ok {
		return miner
	}
	r.logger.Warn().Str("miner", string(name)).Msg("Requested miner not registered")
	return &notAvailableMiner{name: name}
}

// Has reports whether the named miner was registered
func (r *Registry) Has(name models.MinerName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.miners[name]
	return ok
}

// notAvailableMiner satisfies the contract for unregistered names
type notAvailableMiner struct {
	name models.MinerName
}

func (m *notAvailableMiner) Name() models.MinerName { return m.name }

func (m *notAvailableMiner) Mine(_ context.Context, _ *models.Job) (*interfaces.MineResult, error) {
	return &interfaces.MineResult{
		Status: interfaces.MineStatusError,
		Meta: interfaces.MineMeta{
			Source: string(m.name),
			Error:  "miner not available",
		},
	}, nil
}

var _ interfaces.Miner = (*notAvailableMiner)(nil)
