package service

import "sync"

// Registry maps agent ids to their knowledge services. It is an explicit
// object owned by the process entry point rather than package-level state,
// so service lifecycle follows the owning agent's startup and shutdown.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*KnowledgeService
}

func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*KnowledgeService)}
}

func (r *Registry) Put(svc *KnowledgeService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[svc.AgentID()] = svc
}

func (r *Registry) Get(agentID string) (*KnowledgeService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[agentID]
	return svc, ok
}

func (r *Registry) Remove(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, agentID)
}
