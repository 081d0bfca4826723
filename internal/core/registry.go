package core

import "sync"

// Registry maps live clients to their usernames.
// The lock is held only for map access, never while sending.
type Registry struct {
	mu      sync.Mutex
	clients map[*Client]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[*Client]string)}
}

// Register adds c. Usernames are not required to be unique.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	r.clients[c] = c.Name
	r.mu.Unlock()
}

// Deregister removes c and reports whether it was present.
func (r *Registry) Deregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c]; !ok {
		return false
	}
	delete(r.clients, c)
	return true
}

// Snapshot returns a point-in-time copy of the registered clients.
func (r *Registry) Snapshot() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
