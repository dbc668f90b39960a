// Package timeout maps presentation lifespans to timeouts and runs the
// timers that expire presentations.
package timeout

import (
	"time"

	"github.com/jmylchreest/presentd/internal/model"
)

// Built-in lifespan timeouts.
const (
	DefaultTransient = 10 * time.Second
	DefaultShort     = 30 * time.Second
)

// MapperConfig holds the configurable lifespan timeouts. A zero value keeps
// the built-in default and a negative value disables the timeout. LONG has
// no built-in timeout. PERMANENT is not configurable.
type MapperConfig struct {
	Transient time.Duration
	Short     time.Duration
	Long      time.Duration
}

// Mapper resolves the timeout for a lifespan. It is immutable once built.
type Mapper struct {
	byLifespan map[model.Lifespan]model.Timeout
}

// NewMapper builds a Mapper from cfg.
func NewMapper(cfg MapperConfig) *Mapper {
	return &Mapper{
		byLifespan: map[model.Lifespan]model.Timeout{
			model.LifespanTransient: resolve(cfg.Transient, model.ExplicitTimeout(DefaultTransient)),
			model.LifespanShort:     resolve(cfg.Short, model.ExplicitTimeout(DefaultShort)),
			model.LifespanLong:      resolve(cfg.Long, model.DisabledTimeout()),
			model.LifespanPermanent: model.DisabledTimeout(),
		},
	}
}

// DefaultMapper returns a Mapper with the built-in timeouts.
func DefaultMapper() *Mapper {
	return NewMapper(MapperConfig{})
}

func resolve(configured time.Duration, fallback model.Timeout) model.Timeout {
	switch {
	case configured < 0:
		return model.DisabledTimeout()
	case configured == 0:
		return fallback
	default:
		return model.ExplicitTimeout(configured)
	}
}

// Timeout returns the timeout for lifespan. The result is never the Default
// variant.
func (m *Mapper) Timeout(lifespan model.Lifespan) model.Timeout {
	if t, ok := m.byLifespan[lifespan]; ok {
		return t
	}
	return model.DisabledTimeout()
}
