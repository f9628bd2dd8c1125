package registry

import (
	"context"
	"strings"
	"sync"

	"healsync/internal/ports/directory"
)

// MemoryLookup es un directorio en memoria para dev y tests.
type MemoryLookup struct {
	mu       sync.RWMutex
	patients map[string]directory.Person // phone -> person
	doctors  map[string]directory.Person
}

func NewMemoryLookup() *MemoryLookup {
	return &MemoryLookup{
		patients: make(map[string]directory.Person),
		doctors:  make(map[string]directory.Person),
	}
}

func (m *MemoryLookup) SeedPatient(p directory.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[normalizePhone(p.Phone)] = p
}

func (m *MemoryLookup) SeedDoctor(p directory.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[normalizePhone(p.Phone)] = p
}

func (m *MemoryLookup) ResolvePatientPhone(ctx context.Context, phone string) (directory.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[normalizePhone(phone)]
	if !ok {
		return directory.Person{}, directory.ErrNotFound
	}
	return p, nil
}

func (m *MemoryLookup) ResolveDoctorPhone(ctx context.Context, phone string) (directory.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.doctors[normalizePhone(phone)]
	if !ok {
		return directory.Person{}, directory.ErrNotFound
	}
	return p, nil
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
