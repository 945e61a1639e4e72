package poller

import (
	"context"
	"sync"
	"time"

	"github.com/tiplinehq/tipline/pkg/common/logger"
	"github.com/tiplinehq/tipline/pkg/events"
	"github.com/tiplinehq/tipline/pkg/infra"
	"github.com/tiplinehq/tipline/pkg/store/cursorstore"
)

const defaultShutdownTimeout = 30 * time.Second

type Manager struct {
	ctx     context.Context
	pollers []Poller
	kvstore infra.KVStore
	cursors cursorstore.Store
	emitter events.Emitter
	redis   infra.RedisClient
}

func NewManager(
	ctx context.Context,
	kvstore infra.KVStore,
	cursors cursorstore.Store,
	emitter events.Emitter,
	redis infra.RedisClient,
) *Manager {
	return &Manager{
		ctx:     ctx,
		kvstore: kvstore,
		cursors: cursors,
		emitter: emitter,
		redis:   redis,
	}
}

// Start launches all injected pollers
func (m *Manager) Start() {
	for _, p := range m.pollers {
		p.Start()
	}
}

// Stop shuts down all pollers concurrently with a timeout, then closes resources.
func (m *Manager) Stop() {
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, p := range m.pollers {
			if p != nil {
				wg.Add(1)
				go func(p Poller) {
					defer wg.Done()
					p.Stop()
				}(p)
			}
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("All pollers stopped")
	case <-time.After(defaultShutdownTimeout):
		logger.Warn("Poller shutdown timed out, proceeding with resource cleanup",
			"timeout", defaultShutdownTimeout)
	}

	m.closeResource("emitter", m.emitter, func() error { m.emitter.Close(); return nil })
	m.closeResource("cursor store", m.cursors, m.cursors.Close)
	m.closeResource("KV store", m.kvstore, m.kvstore.Close)
	if m.redis != nil {
		m.closeResource("redis", m.redis, m.redis.Close)
	}

	logger.Info("Manager stopped")
}

// closeResource is a helper to close resources with consistent error handling
func (m *Manager) closeResource(name string, resource interface{}, closer func() error) {
	if resource != nil {
		if err := closer(); err != nil {
			logger.Error("Failed to close "+name, "err", err)
		}
	}
}

// Inject pollers into manager
func (m *Manager) AddPollers(pollers ...Poller) {
	m.pollers = append(m.pollers, pollers...)
}

// Pollers returns the injected pollers, for stats reporting.
func (m *Manager) Pollers() []Poller {
	return m.pollers
}
