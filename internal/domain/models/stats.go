package models

// Stats is the dashboard payload. Field names are consumed by stats.html.
type Stats struct {
	Days            int          `json:"days"`
	Labels          []string     `json:"labels"`
	VisitsByDay     []int64      `json:"visits_by_day"`
	SimsByDay       []int64      `json:"sims_by_day"`
	ByEvent         []EventCount `json:"by_event"`
	Last            int64        `json:"last"`
	VisitsTotal     int64        `json:"visits_total"`
	UniqueIPs       int64        `json:"unique_ips"`
	VisitsPerUser   float64      `json:"visits_per_user"`
	AttemptsTotal   int64        `json:"attempts_total"`
	AttemptsSuccess int64        `json:"attempts_success"`
}

// EmptyStats returns a zero payload with non-nil slices so it serializes as [] not null.
func EmptyStats(days int) *Stats {
	return &Stats{
		Days:        days,
		Labels:      []string{},
		VisitsByDay: []int64{},
		SimsByDay:   []int64{},
		ByEvent:     []EventCount{},
	}
}
