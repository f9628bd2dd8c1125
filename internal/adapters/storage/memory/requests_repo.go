package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"healsync/internal/domain/grants"
)

type requestsRepo struct {
	mu   sync.Mutex
	byID map[string]grants.PendingRequest
}

func NewRequestsRepo() grants.RequestRepository {
	return &requestsRepo{
		byID: make(map[string]grants.PendingRequest),
	}
}

func (r *requestsRepo) Create(ctx context.Context, req grants.PendingRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.ID == "" {
		return errors.New("request id required")
	}
	if _, exists := r.byID[req.ID]; exists {
		return errors.New("request already exists")
	}
	r.byID[req.ID] = req
	return nil
}

func (r *requestsRepo) Update(ctx context.Context, req grants.PendingRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[req.ID]; !exists {
		return grants.ErrNotFound
	}
	r.byID[req.ID] = req
	return nil
}

func (r *requestsRepo) GetByID(ctx context.Context, id string) (grants.PendingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.byID[id]
	if !ok {
		return grants.PendingRequest{}, grants.ErrNotFound
	}
	return req, nil
}

func (r *requestsRepo) ListAwaitingForPatient(ctx context.Context, patientID string) ([]grants.PendingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]grants.PendingRequest, 0)
	for _, req := range r.byID {
		if req.PatientID == patientID && req.Status == grants.RequestAwaitingOTP {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *requestsRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.byID[id]
	if !ok {
		return 0, grants.ErrNotFound
	}
	req.Attempts++
	r.byID[id] = req
	return req.Attempts, nil
}

// MarkApproved: a lo sumo un approve gana la transición, bajo el lock.
func (r *requestsRepo) MarkApproved(ctx context.Context, id, grantID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.byID[id]
	if !ok {
		return grants.ErrNotFound
	}
	if req.Status != grants.RequestAwaitingOTP {
		return grants.ErrAlreadyUsed
	}
	req.Status = grants.RequestApproved
	req.GrantID = grantID
	req.UpdatedAt = at
	r.byID[id] = req
	return nil
}
