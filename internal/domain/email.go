package domain

// EmailSet is an insertion-ordered set of email addresses. Addresses are
// compared as exact strings: no case folding and no syntax validation.
type EmailSet struct {
	seen  map[string]struct{}
	items []string
}

// NewEmailSet creates an empty set.
func NewEmailSet() *EmailSet {
	return &EmailSet{seen: make(map[string]struct{})}
}

// Add inserts each address not already present, keeping first-seen order.
func (s *EmailSet) Add(emails ...string) {
	for _, e := range emails {
		if _, ok := s.seen[e]; ok {
			continue
		}
		s.seen[e] = struct{}{}
		s.items = append(s.items, e)
	}
}

// Len returns the number of unique addresses.
func (s *EmailSet) Len() int { return len(s.items) }

// Slice returns the addresses in insertion order. The result is a copy.
func (s *EmailSet) Slice() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
