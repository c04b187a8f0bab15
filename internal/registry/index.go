package registry

// index is the hierarchical component -> method -> engine -> registration
// lookup. It holds no lock of its own: the owning Registry's RWMutex
// guards every access.
type index struct {
	byComponent map[string]map[string]map[string]*Registration
}

func newIndex() *index {
	return &index{byComponent: make(map[string]map[string]map[string]*Registration)}
}

func (ix *index) put(reg *Registration) {
	byMethod, ok := ix.byComponent[reg.Component]
	if !ok {
		byMethod = make(map[string]map[string]*Registration)
		ix.byComponent[reg.Component] = byMethod
	}
	byEngine, ok := byMethod[reg.Method]
	if !ok {
		byEngine = make(map[string]*Registration)
		byMethod[reg.Method] = byEngine
	}
	byEngine[reg.Engine] = reg
}

func (ix *index) get(component, method, engine string) (*Registration, bool) {
	byEngine, ok := ix.byComponent[component][method]
	if !ok {
		return nil, false
	}
	reg, ok := byEngine[engine]
	return reg, ok
}

// candidates returns all engines' registrations for (component, method)
// in insertion order.
func (ix *index) candidates(component, method string) []*Registration {
	byEngine, ok := ix.byComponent[component][method]
	if !ok {
		return nil
	}
	out := make([]*Registration, 0, len(byEngine))
	for _, reg := range byEngine {
		out = append(out, reg)
	}
	sortBySeq(out)
	return out
}

func (ix *index) engines(component, method string) []string {
	cands := ix.candidates(component, method)
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Engine)
	}
	return out
}

func sortBySeq(regs []*Registration) {
	for i := 1; i < len(regs); i++ {
		j := i
		for j > 0 && regs[j-1].seq > regs[j].seq {
			regs[j-1], regs[j] = regs[j], regs[j-1]
			j--
		}
	}
}
