package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

const defaultCheckTimeout = 3 * time.Second

var errPanic = errors.New("check panicked")

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// Report is the readiness payload.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks"`
}

// Service encapsulates readiness checks.
type Service struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: map[string]Check{}, timeout: defaultCheckTimeout}
}

// Register adds or replaces a named check.
func (s *Service) Register(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Names lists registered checks in sorted order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status runs every check concurrently, each bounded by the check timeout.
func (s *Service) Status(ctx context.Context) Report {
	s.mu.RLock()
	checks := make(map[string]Check, len(s.checks))
	for name, c := range s.checks {
		checks[name] = c
	}
	timeout := s.timeout
	s.mu.RUnlock()

	report := Report{OK: true, Checks: make(map[string]string, len(checks))}
	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			status := "ok"
			if err := runCheck(cctx, check); err != nil {
				status = err.Error()
			}
			rmu.Lock()
			defer rmu.Unlock()
			report.Checks[name] = status
			if status != "ok" {
				report.OK = false
			}
		}(name, check)
	}
	wg.Wait()
	return report
}

func runCheck(ctx context.Context, check Check) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- errPanic
			}
		}()
		done <- check(ctx)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
