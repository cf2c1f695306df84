package guard

import "sync"

// Navigation holds a forced navigation until the front-end acts on it.
// Later requests overwrite earlier ones.
type Navigation struct {
	mu     sync.Mutex
	target string
}

func NewNavigation() *Navigation {
	return &Navigation{}
}

func (n *Navigation) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.target = target
}

// Take returns and clears the pending target.
func (n *Navigation) Take() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t := n.target
	n.target = ""
	return t, t != ""
}
