package domain

// Validator is a staking participant reported on the dashboard.
type Validator struct {
	Name   string   `json:"name"`
	Stake  uint64   `json:"stake"`
	Uptime *float64 `json:"uptime,omitempty"`
}
