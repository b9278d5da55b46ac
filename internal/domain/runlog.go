package domain

import "time"

// RunStatus is the outcome of one unit of orchestration work.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusError   RunStatus = "error"
)

// Module names double as run-log module names and CLI/API selectors.
const (
	ModuleAuth   = "auth"
	ModuleCruise = "cruise"
	ModuleAddons = "addons"
	ModuleCasino = "casino"
)

// RunLogEntry is one outcome record for a unit of orchestration work.
// Entries are append-only and purge-eligible.
type RunLogEntry struct {
	ID      int64     `json:"id"`
	RanAt   time.Time `json:"run_date"`
	Module  string    `json:"module"`
	Status  RunStatus `json:"status"`
	Message string    `json:"message"`
}
