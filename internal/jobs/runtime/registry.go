package runtime

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Handler executes one job type. Run's error is retried unless the handler already marked the job
// failed or canceled through its Context.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}

// Job types are stored in job_run.job_type and appear as metric labels.
var jobTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Registry maps job types to handlers. It is filled during wiring and read by the worker pool.
type Registry struct {
	mu  sync.RWMutex
	byT map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{byT: map[string]Handler{}}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("register job handler: nil")
	}
	jobType := h.Type()
	if !jobTypePattern.MatchString(jobType) {
		return fmt.Errorf("register job handler: invalid job type %q", jobType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, dup := r.byT[jobType]; dup {
		return fmt.Errorf("register job handler: %q already handled by %T", jobType, prev)
	}
	r.byT[jobType] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	h, ok := r.byT[jobType]
	r.mu.RUnlock()
	return h, ok
}

// Types lists the registered job types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	types := make([]string, 0, len(r.byT))
	for jobType := range r.byT {
		types = append(types, jobType)
	}
	r.mu.RUnlock()
	sort.Strings(types)
	return types
}
