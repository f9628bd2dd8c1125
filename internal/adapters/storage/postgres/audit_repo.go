package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"healsync/internal/domain/audit"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Append: la tabla es append-only; no existe Update ni Delete a propósito.
func (r *AuditRepo) Append(ctx context.Context, e audit.Entry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, patient_id, doctor_id, action, ts, details)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		e.ID,
		e.PatientID,
		toNullString(e.DoctorID),
		string(e.Action),
		e.Timestamp,
		details,
	)
	return err
}

func (r *AuditRepo) ListByPatient(ctx context.Context, patientID string, limit int) ([]audit.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, patient_id, doctor_id, action, ts, details
		FROM audit_log
		WHERE patient_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]audit.Entry, 0)
	for rows.Next() {
		var e audit.Entry
		var doctorID sql.NullString
		var action string
		var details []byte

		if err := rows.Scan(&e.ID, &e.PatientID, &doctorID, &action, &e.Timestamp, &details); err != nil {
			return nil, err
		}

		e.DoctorID = doctorID.String
		e.Action = audit.Action(action)
		if len(details) > 0 {
			_ = json.Unmarshal(details, &e.Details)
		}

		out = append(out, e)
	}
	return out, rows.Err()
}
