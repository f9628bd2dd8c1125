package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"healsync/internal/domain/grants"
)

type grantsRepo struct {
	mu   sync.RWMutex
	byID map[string]grants.Grant
}

func NewGrantsRepo() grants.Repository {
	return &grantsRepo{
		byID: make(map[string]grants.Grant),
	}
}

func (r *grantsRepo) Create(ctx context.Context, g grants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; exists {
		return errors.New("grant already exists")
	}
	r.byID[g.ID] = g
	return nil
}

func (r *grantsRepo) Update(ctx context.Context, g grants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; !exists {
		return grants.ErrNotFound
	}
	r.byID[g.ID] = g
	return nil
}

func (r *grantsRepo) GetByID(ctx context.Context, id string) (grants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.byID[id]
	if !ok {
		return grants.Grant{}, grants.ErrNotFound
	}
	return g, nil
}

// GetByCredential solo mira grants no terminales según el estado almacenado:
// un short code de un grant revocado/expirado queda libre para reuso.
func (r *grantsRepo) GetByCredential(ctx context.Context, credential string) (grants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var winner grants.Grant
	has := false

	for _, g := range r.byID {
		if g.Status != grants.StatusPending && g.Status != grants.StatusActive {
			continue
		}
		if g.Secret != credential && g.ShortCode != credential {
			continue
		}
		if !has || g.UpdatedAt.After(winner.UpdatedAt) {
			winner = g
			has = true
		}
	}

	if !has {
		return grants.Grant{}, grants.ErrNotFound
	}
	return winner, nil
}

// Bind serializa el claim bajo el lock del repo: exactamente un doctor gana.
func (r *grantsRepo) Bind(ctx context.Context, grantID, doctorID string, at time.Time) (grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.byID[grantID]
	if !ok {
		return grants.Grant{}, grants.ErrNotFound
	}
	if g.DoctorID == doctorID && g.Status == grants.StatusActive {
		return g, nil
	}
	if g.DoctorID != "" {
		return grants.Grant{}, grants.ErrAlreadyClaimed
	}
	if g.Status != grants.StatusPending {
		return grants.Grant{}, grants.ErrAlreadyClaimed
	}

	g.DoctorID = doctorID
	g.Status = grants.StatusActive
	g.ClaimedAt = &at
	g.UpdatedAt = at
	r.byID[grantID] = g
	return g, nil
}

// GetForDoctorPatient prefiere el grant no terminal más reciente: revocar un
// grant viejo no puede tapar otro todavía vigente del mismo par. Si solo
// quedan terminales se devuelve el último, para que la denegación distinga
// revoked/expired de no_access.
func (r *grantsRepo) GetForDoctorPatient(ctx context.Context, doctorID, patientID string) (grants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var live, terminal grants.Grant
	hasLive, hasTerminal := false, false

	for _, g := range r.byID {
		if g.DoctorID != doctorID || g.PatientID != patientID {
			continue
		}
		if g.Status == grants.StatusPending || g.Status == grants.StatusActive {
			if !hasLive || newerThan(g, live) {
				live = g
				hasLive = true
			}
			continue
		}
		if !hasTerminal || newerThan(g, terminal) {
			terminal = g
			hasTerminal = true
		}
	}

	if hasLive {
		return live, nil
	}
	if hasTerminal {
		return terminal, nil
	}
	return grants.Grant{}, grants.ErrNotFound
}

func newerThan(a, b grants.Grant) bool {
	if a.UpdatedAt.After(b.UpdatedAt) {
		return true
	}
	return a.UpdatedAt.Equal(b.UpdatedAt) && a.CreatedAt.After(b.CreatedAt)
}

func (r *grantsRepo) ListByPatient(ctx context.Context, patientID string) ([]grants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]grants.Grant, 0)
	for _, g := range r.byID {
		if g.PatientID == patientID {
			out = append(out, g)
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (r *grantsRepo) ListByDoctor(ctx context.Context, doctorID string) ([]grants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]grants.Grant, 0)
	for _, g := range r.byID {
		if g.DoctorID == doctorID {
			out = append(out, g)
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (r *grantsRepo) ShortCodeInUse(ctx context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.byID {
		if g.ShortCode != code {
			continue
		}
		if g.Status == grants.StatusPending || g.Status == grants.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

func sortByCreatedDesc(items []grants.Grant) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
