package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ProviderLimits describes one backend's capacity over a rolling window.
// MaxBytes is the hard per-window ceiling that must never be exceeded;
// SafetyFactor scales it down to the soft ceiling the router respects so
// routing switches providers before the hard limit is at risk.
type ProviderLimits struct {
	Window        time.Duration
	MaxBytes      int64
	MaxRequests   int
	MaxChunkBytes int64
	SafetyFactor  float64
}

func (l ProviderLimits) softBytes() int64 {
	return int64(float64(l.MaxBytes) * l.SafetyFactor)
}

// ProviderState tracks one backend's usage inside the current window. All
// mutation happens inside the router under its lock; callers only ever see
// copies via Snapshot.
type ProviderState struct {
	Name         string
	Limits       ProviderLimits
	WindowStart  time.Time
	BytesUsed    int64
	RequestsUsed int
	BlockedUntil time.Time
}

// RouteRule is one entry of the selection policy table, evaluated in order.
// An empty Provider means "any eligible backend, most remaining bytes first",
// which makes it the natural catch-all last rule.
type RouteRule struct {
	Match    func(chunkBytes int64) bool
	Provider string
}

// DefaultRouteRules routes large chunks to the backend with the highest hard
// byte ceiling and everything else to whichever eligible backend has the most
// window capacity left.
func DefaultRouteRules(largeChunkBytes int64, specs []ProviderSpec) []RouteRule {
	biggest := ""
	var biggestLimit int64
	for _, spec := range specs {
		if spec.Limits.MaxBytes > biggestLimit {
			biggestLimit = spec.Limits.MaxBytes
			biggest = spec.Provider.Name()
		}
	}
	return []RouteRule{
		{Match: func(b int64) bool { return b >= largeChunkBytes }, Provider: biggest},
		{Match: func(int64) bool { return true }, Provider: ""},
	}
}

// ProviderSpec pairs a backend with its capacity limits.
type ProviderSpec struct {
	Provider Provider
	Limits   ProviderLimits
}

type registeredProvider struct {
	state    ProviderState
	provider Provider
	limiter  *rate.Limiter
}

// Router owns every ProviderState and is the only component that mutates
// them. Selection reserves capacity under the lock, so two workers can never
// claim the same remaining bytes; RecordUsage settles the reservation.
type Router struct {
	mu         sync.Mutex
	providers  []*registeredProvider
	rules      []RouteRule
	waitBudget time.Duration
	now        func() time.Time
}

// NewRouter builds a router over the given providers and policy table.
func NewRouter(specs []ProviderSpec, rules []RouteRule, waitBudget time.Duration) *Router {
	r := &Router{
		rules:      rules,
		waitBudget: waitBudget,
		now:        time.Now,
	}
	for _, spec := range specs {
		limits := spec.Limits
		if limits.SafetyFactor <= 0 || limits.SafetyFactor > 1 {
			limits.SafetyFactor = 0.8
		}
		perSecond := float64(limits.MaxRequests) / limits.Window.Seconds()
		r.providers = append(r.providers, &registeredProvider{
			state: ProviderState{
				Name:   spec.Provider.Name(),
				Limits: limits,
			},
			provider: spec.Provider,
			limiter:  rate.NewLimiter(rate.Limit(perSecond), limits.MaxRequests),
		})
	}
	return r
}

// Select reserves capacity for a chunk and returns the provider that should
// transcribe it. When no provider has capacity it blocks until the earliest
// window reset, failing with a RESOURCE classification once the wait budget
// is exceeded. The reservation is settled later by RecordUsage.
func (r *Router) Select(ctx context.Context, chunkBytes int64) (Provider, error) {
	deadline := r.now().Add(r.waitBudget)

	for {
		rp, wait, err := r.trySelect(chunkBytes)
		if err != nil {
			return nil, err
		}
		if rp != nil {
			// Request pacing: smooth call starts inside the window.
			if err := rp.limiter.Wait(ctx); err != nil {
				r.cancelReservation(rp.state.Name, chunkBytes)
				return nil, err
			}
			return rp.provider, nil
		}

		if r.now().Add(wait).After(deadline) {
			return nil, Resource("route", fmt.Errorf("no provider capacity for %d bytes within wait budget %s", chunkBytes, r.waitBudget))
		}

		slog.Debug("waiting for provider capacity", slog.Int64("chunk_bytes", chunkBytes), slog.Duration("wait", wait))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// trySelect makes one pass over the policy table. It returns a provider with
// capacity already reserved, or the wait until the earliest window reset
// could change the answer.
func (r *Router) trySelect(chunkBytes int64) (*registeredProvider, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.providers) == 0 {
		return nil, 0, Permanent("route", fmt.Errorf("no transcription providers configured"))
	}

	now := r.now()
	feasible := false
	var eligible []*registeredProvider

	for _, rp := range r.providers {
		r.refreshWindow(rp, now)
		limits := rp.state.Limits
		if chunkBytes > limits.MaxChunkBytes || chunkBytes > limits.softBytes() {
			continue
		}
		feasible = true
		if now.Before(rp.state.BlockedUntil) {
			continue
		}
		if rp.state.RequestsUsed+1 > limits.MaxRequests {
			continue
		}
		if rp.state.BytesUsed+chunkBytes > limits.softBytes() {
			continue
		}
		eligible = append(eligible, rp)
	}

	if !feasible {
		return nil, 0, Resource("route", fmt.Errorf("chunk of %d bytes exceeds every provider's ceiling", chunkBytes))
	}

	if pick := r.applyRules(chunkBytes, eligible); pick != nil {
		pick.state.BytesUsed += chunkBytes
		pick.state.RequestsUsed++
		return pick, 0, nil
	}

	return nil, r.earliestRelief(now), nil
}

// applyRules walks the policy table in order and returns the first match.
func (r *Router) applyRules(chunkBytes int64, eligible []*registeredProvider) *registeredProvider {
	if len(eligible) == 0 {
		return nil
	}
	for _, rule := range r.rules {
		if !rule.Match(chunkBytes) {
			continue
		}
		if rule.Provider == "" {
			sorted := make([]*registeredProvider, len(eligible))
			copy(sorted, eligible)
			sort.Slice(sorted, func(i, j int) bool {
				ri := sorted[i].state.Limits.softBytes() - sorted[i].state.BytesUsed
				rj := sorted[j].state.Limits.softBytes() - sorted[j].state.BytesUsed
				return ri > rj
			})
			return sorted[0]
		}
		for _, rp := range eligible {
			if rp.state.Name == rule.Provider {
				return rp
			}
		}
	}
	return nil
}

// earliestRelief returns how long until some provider's window resets.
func (r *Router) earliestRelief(now time.Time) time.Duration {
	wait := time.Duration(-1)
	for _, rp := range r.providers {
		reset := rp.state.WindowStart.Add(rp.state.Limits.Window)
		if rp.state.BlockedUntil.After(reset) {
			reset = rp.state.BlockedUntil
		}
		d := reset.Sub(now)
		if d < 0 {
			d = 0
		}
		if wait < 0 || d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = time.Second
	}
	return wait
}

// refreshWindow rolls a provider into a fresh window once the old one ends.
func (r *Router) refreshWindow(rp *registeredProvider, now time.Time) {
	if rp.state.WindowStart.IsZero() {
		rp.state.WindowStart = now
		return
	}
	if now.Sub(rp.state.WindowStart) >= rp.state.Limits.Window {
		rp.state.WindowStart = now
		rp.state.BytesUsed = 0
		rp.state.RequestsUsed = 0
	}
}

// RecordUsage settles a reservation made by Select. Failed calls give the
// bytes back (the payload never counted against the backend's quota) while
// the request itself stays counted.
func (r *Router) RecordUsage(name string, bytes int64, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rp := range r.providers {
		if rp.state.Name != name {
			continue
		}
		if !success {
			rp.state.BytesUsed -= bytes
			if rp.state.BytesUsed < 0 {
				rp.state.BytesUsed = 0
			}
		}
		return
	}
}

// cancelReservation undoes a reservation whose call never started: unlike a
// failed call, no request reached the backend, so the request slot comes back
// along with the bytes.
func (r *Router) cancelReservation(name string, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rp := range r.providers {
		if rp.state.Name != name {
			continue
		}
		rp.state.BytesUsed -= bytes
		if rp.state.BytesUsed < 0 {
			rp.state.BytesUsed = 0
		}
		if rp.state.RequestsUsed > 0 {
			rp.state.RequestsUsed--
		}
		return
	}
}

// MarkRateLimited parks a provider until its current window resets. Used
// when a backend returns a hard 429 despite the soft check (clock skew or
// concurrent over-commit on the provider side).
func (r *Router) MarkRateLimited(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, rp := range r.providers {
		if rp.state.Name != name {
			continue
		}
		r.refreshWindow(rp, now)
		rp.state.BlockedUntil = rp.state.WindowStart.Add(rp.state.Limits.Window)
		slog.Debug("provider rate limited", slog.String("provider", name), slog.Time("until", rp.state.BlockedUntil))
		return
	}
}

// Snapshot returns a copy of every provider's current state.
func (r *Router) Snapshot() []ProviderState {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make([]ProviderState, 0, len(r.providers))
	for _, rp := range r.providers {
		states = append(states, rp.state)
	}
	return states
}

// setClock swaps the time source (tests only).
func (r *Router) setClock(now func() time.Time) {
	r.now = now
}
