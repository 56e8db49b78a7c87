package assignment

import (
	"context"
	"sync"

	vc "github.com/unkn0wn-root/variantcache"
)

// Memory keeps decisions in process, one scope per visitor id.
// Nothing expires; meant for tests and single node hosts with few visitors.
type Memory struct {
	policy Policy

	mu     sync.RWMutex
	scopes map[string]map[string]Record
}

func NewMemory(policy Policy) *Memory {
	return &Memory{policy: policy, scopes: make(map[string]map[string]Record)}
}

// For returns the store scoped to visitor.
func (m *Memory) For(visitor string) vc.AssignmentStore {
	return memoryScope{m: m, visitor: visitor}
}

// MarkSeen records that visitor saw test without deciding anything.
// An existing record is left untouched.
func (m *Memory) MarkSeen(visitor, test string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.scope(visitor)
	if _, ok := s[test]; !ok {
		s[test] = Record{}
	}
}

// Forget drops every record of visitor.
func (m *Memory) Forget(visitor string) {
	m.mu.Lock()
	delete(m.scopes, visitor)
	m.mu.Unlock()
}

func (m *Memory) scope(visitor string) map[string]Record {
	s, ok := m.scopes[visitor]
	if !ok {
		s = make(map[string]Record)
		m.scopes[visitor] = s
	}
	return s
}

func (m *Memory) get(visitor, test string) vc.Assignment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.scopes[visitor][test]
	if !ok {
		return vc.Assignment{}
	}
	return toAssignment(rec)
}

func (m *Memory) set(visitor, test string, rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.scope(visitor)
	if m.policy == FirstWriteWins && s[test].decided() {
		return
	}
	s[test] = rec
}

type memoryScope struct {
	m       *Memory
	visitor string
}

func (s memoryScope) Get(_ context.Context, test string) (vc.Assignment, error) {
	return s.m.get(s.visitor, test), nil
}

func (s memoryScope) SetVariant(_ context.Context, test, variant string) error {
	s.m.set(s.visitor, test, Record{Variant: variant})
	return nil
}

func (s memoryScope) SetExcluded(_ context.Context, test string) error {
	s.m.set(s.visitor, test, Record{Excluded: true})
	return nil
}
