package llm

import "fmt"

// Delegate is a named specialist model the decision layer can route to,
// e.g. a coding model or a general conversational model.
type Delegate struct {
	Name    string
	Purpose string
	Client  Completer
}

// DelegateSet holds the configured delegates in registration order.
// Exactly one delegate is the default; it doubles as the universal
// fallback target when the decision layer cannot produce a valid action.
type DelegateSet struct {
	order       []string
	delegates   map[string]Delegate
	defaultName string
}

// NewDelegateSet creates an empty delegate set.
func NewDelegateSet() *DelegateSet {
	return &DelegateSet{delegates: make(map[string]Delegate)}
}

// Add appends a delegate. The first delegate added becomes the default
// unless a later one is explicitly marked as such.
func (s *DelegateSet) Add(d Delegate, isDefault bool) error {
	if d.Name == "" {
		return fmt.Errorf("delegate name must not be empty")
	}
	if _, ok := s.delegates[d.Name]; ok {
		return fmt.Errorf("duplicate delegate %q", d.Name)
	}
	s.delegates[d.Name] = d
	s.order = append(s.order, d.Name)
	if isDefault || s.defaultName == "" {
		s.defaultName = d.Name
	}
	return nil
}

// Get retrieves a delegate by name.
func (s *DelegateSet) Get(name string) (Delegate, bool) {
	d, ok := s.delegates[name]
	return d, ok
}

// Default returns the fallback delegate.
func (s *DelegateSet) Default() (Delegate, bool) {
	return s.Get(s.defaultName)
}

// Names returns the delegate names in registration order.
func (s *DelegateSet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// All returns the delegates in registration order.
func (s *DelegateSet) All() []Delegate {
	out := make([]Delegate, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.delegates[name])
	}
	return out
}

// Len reports how many delegates are configured.
func (s *DelegateSet) Len() int { return len(s.order) }
