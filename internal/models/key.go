package models

// KeyStatus is today's view of one configured API key.
type KeyStatus struct {
	Key        string `json:"key"` // masked
	Position   int    `json:"position"`
	TodayUsage int64  `json:"todayUsage"`
	Blocked    bool   `json:"blocked"`
}

// UsageReport summarises the shared store for operators.
type UsageReport struct {
	Day      string           `json:"day"`
	Keys     []KeyStatus      `json:"keys"`
	Requests map[string]int64 `json:"requests"`
}
