package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// HealthReport is the outcome of one health check.
type HealthReport struct {
	CheckedAt time.Time `json:"checked_at" yaml:"checked_at"`
	Database  string    `json:"database" yaml:"database"`
	Pages     int       `json:"pages" yaml:"pages"`
	Running   []string  `json:"running,omitempty" yaml:"running,omitempty"`
	Stuck     []string  `json:"stuck,omitempty" yaml:"stuck,omitempty"`
}

// HealthCheck pings the store and looks for runs older than the stuck
// threshold. It returns the report and a non-nil error when unhealthy.
func (s *Service) HealthCheck(ctx context.Context) (*HealthReport, error) {
	now := s.now()
	h := &HealthReport{CheckedAt: now, Database: "ok"}

	var problems []string
	if err := s.store.PingContext(ctx); err != nil {
		h.Database = err.Error()
		problems = append(problems, "database unreachable")
	} else if n, err := s.store.CountPages(ctx); err == nil {
		h.Pages = n
	}

	for id, started := range s.scheduler.Running() {
		h.Running = append(h.Running, id)
		if id != JobHealthCheck && now.Sub(started) > s.stuckAfter {
			h.Stuck = append(h.Stuck, id)
		}
	}
	sort.Strings(h.Running)
	sort.Strings(h.Stuck)
	if len(h.Stuck) > 0 {
		problems = append(problems, "stuck jobs: "+strings.Join(h.Stuck, ", "))
	}

	if len(problems) > 0 {
		s.logger.Warn("Health check failed", "problems", problems)
		return h, fmt.Errorf("unhealthy: %s", strings.Join(problems, "; "))
	}
	return h, nil
}
