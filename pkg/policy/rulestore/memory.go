package rulestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/detection"
)

// MemoryBackend keeps rules in process memory. It backs tests, offline
// evaluation and YAML-directory deployments.
type MemoryBackend struct {
	mu        sync.RWMutex
	policies  map[string]map[string]*policy.PolicyRule // workspace -> name -> rule
	detection map[string]map[string]*detection.Rule    // workspace -> id -> rule
	closed    bool
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		policies:  make(map[string]map[string]*policy.PolicyRule),
		detection: make(map[string]map[string]*detection.Rule),
	}
}

// ListWorkspaces implements Backend.
func (m *MemoryBackend) ListWorkspaces(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	seen := make(map[string]struct{}, len(m.policies)+len(m.detection))
	for ws := range m.policies {
		seen[ws] = struct{}{}
	}
	for ws := range m.detection {
		seen[ws] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for ws := range seen {
		out = append(out, ws)
	}
	sort.Strings(out)
	return out, nil
}

// ListPolicyRules implements Backend.
func (m *MemoryBackend) ListPolicyRules(_ context.Context, workspaceID string) ([]*policy.PolicyRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	rules := m.policies[workspaceID]
	out := make([]*policy.PolicyRule, 0, len(rules))
	for _, r := range rules {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListDetectionRules implements Backend.
func (m *MemoryBackend) ListDetectionRules(_ context.Context, workspaceID string) ([]*detection.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	rules := m.detection[workspaceID]
	out := make([]*detection.Rule, 0, len(rules))
	for _, r := range rules {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SavePolicyRule implements Backend. A rule without an id is assigned one.
func (m *MemoryBackend) SavePolicyRule(_ context.Context, rule *policy.PolicyRule) error {
	if err := validatePolicyRule(rule); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.UpdatedAt = time.Now().UTC()

	byName, ok := m.policies[rule.WorkspaceID]
	if !ok {
		byName = make(map[string]*policy.PolicyRule)
		m.policies[rule.WorkspaceID] = byName
	}
	// A rename must not leave the old entry behind.
	for name, existing := range byName {
		if existing.ID == rule.ID && name != rule.Name {
			delete(byName, name)
		}
	}
	cp := *rule
	byName[rule.Name] = &cp
	return nil
}

// SaveDetectionRule implements Backend.
func (m *MemoryBackend) SaveDetectionRule(_ context.Context, rule *detection.Rule) error {
	if err := validateDetectionRule(rule); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	rule.UpdatedAt = time.Now().UTC()
	byID, ok := m.detection[rule.WorkspaceID]
	if !ok {
		byID = make(map[string]*detection.Rule)
		m.detection[rule.WorkspaceID] = byID
	}
	cp := *rule
	byID[rule.ID] = &cp
	return nil
}

// DeletePolicyRule implements Backend.
func (m *MemoryBackend) DeletePolicyRule(_ context.Context, workspaceID, ruleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	for name, r := range m.policies[workspaceID] {
		if r.ID == ruleID {
			delete(m.policies[workspaceID], name)
			if len(m.policies[workspaceID]) == 0 {
				delete(m.policies, workspaceID)
			}
			return nil
		}
	}
	return ErrNotFound
}

// Replace swaps the whole content of the backend for the bundle's rules.
// Readers see either the old or the new rule set.
func (m *MemoryBackend) Replace(bundle *Bundle) {
	policies := make(map[string]map[string]*policy.PolicyRule)
	dets := make(map[string]map[string]*detection.Rule)
	now := time.Now().UTC()

	for _, r := range bundle.PolicyRules {
		cp := *r
		cp.UpdatedAt = now
		if policies[cp.WorkspaceID] == nil {
			policies[cp.WorkspaceID] = make(map[string]*policy.PolicyRule)
		}
		policies[cp.WorkspaceID][cp.Name] = &cp
	}
	for _, r := range bundle.DetectionRules {
		cp := *r
		cp.UpdatedAt = now
		if dets[cp.WorkspaceID] == nil {
			dets[cp.WorkspaceID] = make(map[string]*detection.Rule)
		}
		dets[cp.WorkspaceID][cp.ID] = &cp
	}

	m.mu.Lock()
	m.policies = policies
	m.detection = dets
	m.mu.Unlock()
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
