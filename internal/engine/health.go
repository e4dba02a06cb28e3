package engine

import (
	"time"

	"github.com/roach88/agentcontract/internal/contract"
)

// HealthStatus is the coarse state an agent reports for its contract layer.
type HealthStatus string

const (
	// HealthHealthy means the engine is sealed and knows at least one type.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded means the engine is sealed with an empty registry;
	// every envelope will fail with UNKNOWN_TYPE.
	HealthDegraded HealthStatus = "degraded"

	// HealthUnhealthy means Seal has not been called; every read fails
	// with NOT_READY.
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Health describes the engine for an agent's health endpoint.
type Health struct {
	Status          HealthStatus `json:"status"`
	EngineVersion   string       `json:"engine_version"`
	ContractVersion string       `json:"contract_version"`
	Sealed          bool         `json:"sealed"`
	Types           int          `json:"types"`
	Versions        int          `json:"versions"`
	Deprecated      int          `json:"deprecated"`
	CheckedAt       time.Time    `json:"checked_at"`
}

// Health reports the engine's readiness at the validator clock's now.
func (e *Engine) Health() Health {
	h := Health{
		Status:          HealthUnhealthy,
		EngineVersion:   contract.EngineVersion,
		ContractVersion: contract.ContractVersion,
		Sealed:          e.reg.Sealed(),
		CheckedAt:       e.clock.Now().UTC(),
	}
	if !h.Sealed {
		return h
	}

	types := e.reg.Types()
	h.Types = len(types)
	for _, t := range types {
		fam, err := e.reg.Family(t)
		if err != nil {
			continue
		}
		for _, v := range fam.Versions() {
			h.Versions++
			if s, ok := fam.Schema(v); ok && s.Deprecated {
				h.Deprecated++
			}
		}
	}

	h.Status = HealthHealthy
	if h.Types == 0 {
		h.Status = HealthDegraded
	}
	return h
}
