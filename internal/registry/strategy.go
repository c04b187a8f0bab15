package registry

import "github.com/flowkit/orchestrator/pkg/orcherrors"

// Strategy selects exactly one Registration from a candidate set, or fails
// with NoCandidateError. Strategies are pure: no side effects, no access
// to anything but the candidate slice, so signature prediction can run
// them without mutating registry or handle state.
type Strategy interface {
	Name() string
	Select(component, method string, candidates []*Registration) (*Registration, error)
}

// strategyTable bundles the five built-in strategies, keyed by name,
// plus any the host process registers via RegisterStrategy.
type strategyTable struct {
	byName map[string]Strategy
}

func newStrategyTable() *strategyTable {
	t := &strategyTable{byName: make(map[string]Strategy)}
	for _, s := range []Strategy{
		defaultStrategy{},
		latestStrategy{},
		stableStrategy{},
		priorityStrategy{},
		engineOverrideStrategy{},
	} {
		t.byName[s.Name()] = s
	}
	return t
}

func (t *strategyTable) register(s Strategy) { t.byName[s.Name()] = s }

func (t *strategyTable) get(name string) (Strategy, bool) {
	s, ok := t.byName[name]
	return s, ok
}

func noCandidateErr(component, method, strategy string) error {
	return &orcherrors.NoCandidateError{Component: component, Method: method, Strategy: strategy}
}

// nonDeprecated filters out candidates marked deprecated; deprecated
// registrations stay in the index (so describe/list_engines still surface
// them) but built-in strategies never select one by default.
func nonDeprecated(candidates []*Registration) []*Registration {
	out := make([]*Registration, 0, len(candidates))
	for _, c := range candidates {
		if !c.Deprecated {
			out = append(out, c)
		}
	}
	return out
}

// bestByPriorityThenVersion picks the highest (priority, version,
// insertion order) tuple from a non-empty slice: priority desc, then
// version desc, then non-deprecated first (already filtered), ties by
// insertion order.
func bestByPriorityThenVersion(candidates []*Registration) *Registration {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Priority != best.Priority {
			if c.Priority > best.Priority {
				best = c
			}
			continue
		}
		if cmp := compareSemver(c.Version, best.Version); cmp != 0 {
			if cmp > 0 {
				best = c
			}
			continue
		}
		if c.seq < best.seq {
			best = c
		}
	}
	return best
}

func bestByVersionOnly(candidates []*Registration) *Registration {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if cmp := compareSemver(c.Version, best.Version); cmp != 0 {
			if cmp > 0 {
				best = c
			}
			continue
		}
		if c.seq < best.seq {
			best = c
		}
	}
	return best
}

func bestByPriorityOnly(candidates []*Registration) *Registration {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Priority != best.Priority {
			if c.Priority > best.Priority {
				best = c
			}
			continue
		}
		if c.seq < best.seq {
			best = c
		}
	}
	return best
}

// defaultStrategy: priority desc, then semver version desc, excluding
// deprecated candidates.
type defaultStrategy struct{}

func (defaultStrategy) Name() string { return "default" }

func (s defaultStrategy) Select(component, method string, candidates []*Registration) (*Registration, error) {
	pool := nonDeprecated(candidates)
	if len(pool) == 0 {
		return nil, noCandidateErr(component, method, s.Name())
	}
	return bestByPriorityThenVersion(pool), nil
}

// latestStrategy: semver version desc, deprecated excluded.
type latestStrategy struct{}

func (latestStrategy) Name() string { return "latest" }

func (s latestStrategy) Select(component, method string, candidates []*Registration) (*Registration, error) {
	pool := nonDeprecated(candidates)
	if len(pool) == 0 {
		return nil, noCandidateErr(component, method, s.Name())
	}
	return bestByVersionOnly(pool), nil
}

// stableStrategy: exclude pre-release versions, then apply the default rule.
type stableStrategy struct{}

func (stableStrategy) Name() string { return "stable" }

func (s stableStrategy) Select(component, method string, candidates []*Registration) (*Registration, error) {
	pool := nonDeprecated(candidates)
	stable := make([]*Registration, 0, len(pool))
	for _, c := range pool {
		if !isPrerelease(c.Version) {
			stable = append(stable, c)
		}
	}
	if len(stable) == 0 {
		return nil, noCandidateErr(component, method, s.Name())
	}
	return bestByPriorityThenVersion(stable), nil
}

// priorityStrategy: strictly by priority desc.
type priorityStrategy struct{}

func (priorityStrategy) Name() string { return "priority" }

func (s priorityStrategy) Select(component, method string, candidates []*Registration) (*Registration, error) {
	pool := nonDeprecated(candidates)
	if len(pool) == 0 {
		return nil, noCandidateErr(component, method, s.Name())
	}
	return bestByPriorityOnly(pool), nil
}

// engineOverrideStrategy picks the candidate whose engine equals the
// caller-supplied tag, carried in its Engine field (see WithEngine). The
// built-in "engine_override" entry has an empty Engine.
type engineOverrideStrategy struct {
	Engine string
}

func (engineOverrideStrategy) Name() string { return "engine_override" }

func (s engineOverrideStrategy) Select(component, method string, candidates []*Registration) (*Registration, error) {
	for _, c := range candidates {
		if c.Engine == s.Engine {
			return c, nil
		}
	}
	return nil, noCandidateErr(component, method, s.Name())
}

// WithEngine returns a copy of the engine_override strategy bound to a
// specific engine tag. Registry.Execute's "_engine_type" directive does not
// go through it; that directive dispatches via SelectWithEngine.
func WithEngine(engine string) Strategy { return engineOverrideStrategy{Engine: engine} }
