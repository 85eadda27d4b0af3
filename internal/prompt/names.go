package prompt

import "strings"

// NameRegistry remembers recently used first and last names for one
// generation run. It keeps at most window entries of each kind, newest first.
// Not safe for concurrent use; each run owns its registry.
type NameRegistry struct {
	window int
	first  []string
	last   []string
	full   map[string]bool
}

// NewNameRegistry creates a registry bounded to window names per kind
func NewNameRegistry(window int) *NameRegistry {
	if window <= 0 {
		window = 60
	}
	return &NameRegistry{
		window: window,
		full:   make(map[string]bool),
	}
}

// Add records a full name
func (r *NameRegistry) Add(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	r.full[strings.ToLower(name)] = true

	parts := strings.Fields(name)
	r.first = pushFront(r.first, parts[0], r.window)
	if len(parts) > 1 {
		r.last = pushFront(r.last, parts[len(parts)-1], r.window)
	}
}

// Seen reports whether this exact full name was already added
func (r *NameRegistry) Seen(name string) bool {
	return r.full[strings.ToLower(strings.TrimSpace(name))]
}

// Forbidden returns the recent first names and last names, newest first
func (r *NameRegistry) Forbidden() (first, last []string) {
	return append([]string(nil), r.first...), append([]string(nil), r.last...)
}

// Len is the number of distinct full names recorded
func (r *NameRegistry) Len() int {
	return len(r.full)
}

func pushFront(list []string, v string, window int) []string {
	for i, existing := range list {
		if strings.EqualFold(existing, v) {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	list = append([]string{v}, list...)
	if len(list) > window {
		list = list[:window]
	}
	return list
}
