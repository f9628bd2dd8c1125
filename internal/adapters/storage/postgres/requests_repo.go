package postgres

import (
	"context"
	"database/sql"
	"time"

	"healsync/internal/domain/grants"
)

const requestColumns = `
	id, doctor_id, patient_id, patient_phone, capability, expiry_policy,
	reason, otp_hash, otp_expires_at, attempts, status, grant_id,
	created_at, updated_at
`

type RequestsRepo struct {
	db *sql.DB
}

func NewRequestsRepo(db *sql.DB) *RequestsRepo {
	return &RequestsRepo{db: db}
}

func (r *RequestsRepo) Create(ctx context.Context, req grants.PendingRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_requests (
			id, doctor_id, patient_id, patient_phone, capability, expiry_policy,
			reason, otp_hash, otp_expires_at, attempts, status, grant_id,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		req.ID,
		req.DoctorID,
		req.PatientID,
		req.PatientPhone,
		string(req.Capability),
		string(req.ExpiryPolicy),
		req.Reason,
		req.OTPHash,
		req.OTPExpiresAt,
		req.Attempts,
		string(req.Status),
		toNullString(req.GrantID),
		req.CreatedAt,
		req.UpdatedAt,
	)
	return err
}

func (r *RequestsRepo) Update(ctx context.Context, req grants.PendingRequest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_requests
		SET attempts = $2, status = $3, grant_id = $4, updated_at = $5
		WHERE id = $1
	`,
		req.ID,
		req.Attempts,
		string(req.Status),
		toNullString(req.GrantID),
		req.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return grants.ErrNotFound
	}
	return nil
}

func (r *RequestsRepo) GetByID(ctx context.Context, id string) (grants.PendingRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests
		WHERE id = $1
	`, id)

	return scanRequest(row)
}

func (r *RequestsRepo) ListAwaitingForPatient(ctx context.Context, patientID string) ([]grants.PendingRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests
		WHERE patient_id = $1 AND status = 'awaiting_otp'
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]grants.PendingRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *RequestsRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE access_requests
		SET attempts = attempts + 1, updated_at = now()
		WHERE id = $1
		RETURNING attempts
	`, id).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, grants.ErrNotFound
	}
	return attempts, err
}

// MarkApproved: UPDATE condicional, a lo sumo un approve gana.
func (r *RequestsRepo) MarkApproved(ctx context.Context, id, grantID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_requests
		SET status = 'approved', grant_id = $2, updated_at = $3
		WHERE id = $1 AND status = 'awaiting_otp'
	`, id, grantID, at)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return grants.ErrAlreadyUsed
	}
	return nil
}

func scanRequest(row rowScanner) (grants.PendingRequest, error) {
	var req grants.PendingRequest
	var capability, policy, status string
	var grantID sql.NullString

	if err := row.Scan(
		&req.ID,
		&req.DoctorID,
		&req.PatientID,
		&req.PatientPhone,
		&capability,
		&policy,
		&req.Reason,
		&req.OTPHash,
		&req.OTPExpiresAt,
		&req.Attempts,
		&status,
		&grantID,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return grants.PendingRequest{}, grants.ErrNotFound
		}
		return grants.PendingRequest{}, err
	}

	req.Capability = grants.Capability(capability)
	req.ExpiryPolicy = grants.ExpiryPolicy(policy)
	req.Status = grants.RequestStatus(status)
	req.GrantID = grantID.String

	return req, nil
}
