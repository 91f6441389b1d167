package session

// ConnectionID identifies one live transport link.
type ConnectionID string

// Registry maps live connections to the display name they joined with.
// It is not safe for concurrent use; the Coordinator owning it serializes access.
type Registry struct {
	names map[ConnectionID]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{names: map[ConnectionID]string{}}
}

// Register inserts or overwrites the display name for id
func (r *Registry) Register(id ConnectionID, displayName string) {
	r.names[id] = displayName
}

// Lookup returns the display name for id, if registered
func (r *Registry) Lookup(id ConnectionID) (string, bool) {
	name, ok := r.names[id]
	return name, ok
}

// Remove deletes id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id ConnectionID) {
	delete(r.names, id)
}

// Len returns the number of registered connections
func (r *Registry) Len() int { return len(r.names) }
