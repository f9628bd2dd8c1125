package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"healsync/internal/domain/grants"
)

const grantColumns = `
	id, patient_id, doctor_id, capability, issuance, status,
	secret, short_code, expiry_policy, expires_at, reason,
	created_at, updated_at, claimed_at, revoked_at
`

type GrantsRepo struct {
	db *sql.DB
}

func NewGrantsRepo(db *sql.DB) *GrantsRepo {
	return &GrantsRepo{db: db}
}

func (r *GrantsRepo) Create(ctx context.Context, g grants.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_grants (
			id, patient_id, doctor_id, capability, issuance, status,
			secret, short_code, expiry_policy, expires_at, reason,
			created_at, updated_at, claimed_at, revoked_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		g.ID,
		g.PatientID,
		toNullString(g.DoctorID),
		string(g.Capability),
		string(g.Issuance),
		string(g.Status),
		g.Secret,
		g.ShortCode,
		string(g.ExpiryPolicy),
		toNullTime(g.ExpiresAt),
		g.Reason,
		g.CreatedAt,
		g.UpdatedAt,
		toNullTime(g.ClaimedAt),
		toNullTime(g.RevokedAt),
	)
	return err
}

func (r *GrantsRepo) Update(ctx context.Context, g grants.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_grants
		SET
			doctor_id = $2,
			status = $3,
			expires_at = $4,
			updated_at = $5,
			claimed_at = $6,
			revoked_at = $7
		WHERE id = $1
	`,
		g.ID,
		toNullString(g.DoctorID),
		string(g.Status),
		toNullTime(g.ExpiresAt),
		g.UpdatedAt,
		toNullTime(g.ClaimedAt),
		toNullTime(g.RevokedAt),
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

func (r *GrantsRepo) GetByID(ctx context.Context, id string) (grants.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return grants.Grant{}, grants.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE id = $1
	`, id)

	return scanGrant(row)
}

// GetByCredential busca por secret o short code entre grants vivos.
// El short code puede repetirse en grants terminales; por eso el filtro
// de status va en el SQL y se toma el más reciente.
func (r *GrantsRepo) GetByCredential(ctx context.Context, credential string) (grants.Grant, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return grants.Grant{}, grants.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE (secret = $1 OR short_code = $1)
		  AND status IN ('pending', 'active')
		ORDER BY updated_at DESC
		LIMIT 1
	`, credential)

	return scanGrant(row)
}

// Bind usa un UPDATE condicional para que exactamente un claim gane;
// si no afectó filas, relee para distinguir idempotencia de derrota.
func (r *GrantsRepo) Bind(ctx context.Context, grantID, doctorID string, at time.Time) (grants.Grant, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_grants
		SET doctor_id = $2, status = 'active', claimed_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'pending' AND doctor_id IS NULL
	`, grantID, doctorID, at)
	if err != nil {
		return grants.Grant{}, err
	}

	n, _ := res.RowsAffected()
	if n == 1 {
		return r.GetByID(ctx, grantID)
	}

	g, err := r.GetByID(ctx, grantID)
	if err != nil {
		return grants.Grant{}, err
	}
	if g.DoctorID == doctorID && g.Status == grants.StatusActive {
		return g, nil
	}
	return grants.Grant{}, grants.ErrAlreadyClaimed
}

// GetForDoctorPatient prefiere grants vivos sobre terminales: revocar un
// grant viejo no tapa otro todavía vigente del mismo par. Los terminales solo
// ganan cuando no queda nada vivo, para distinguir revoked/expired de
// no_access en la denegación.
func (r *GrantsRepo) GetForDoctorPatient(ctx context.Context, doctorID, patientID string) (grants.Grant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE doctor_id = $1 AND patient_id = $2
		ORDER BY
			CASE WHEN status IN ('pending', 'active') THEN 0 ELSE 1 END,
			updated_at DESC, created_at DESC
		LIMIT 1
	`, doctorID, patientID)

	return scanGrant(row)
}

func (r *GrantsRepo) ListByPatient(ctx context.Context, patientID string) ([]grants.Grant, error) {
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
}

func (r *GrantsRepo) ListByDoctor(ctx context.Context, doctorID string) ([]grants.Grant, error) {
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE doctor_id = $1
		ORDER BY created_at DESC
	`, doctorID)
}

func (r *GrantsRepo) ShortCodeInUse(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM access_grants
			WHERE short_code = $1 AND status IN ('pending', 'active')
		)
	`, code).Scan(&exists)
	return exists, err
}

func (r *GrantsRepo) list(ctx context.Context, query, arg string) ([]grants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]grants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (grants.Grant, error) {
	var g grants.Grant
	var doctorID sql.NullString
	var capability, issuance, status, policy string
	var expiresAt, claimedAt, revokedAt sql.NullTime

	if err := row.Scan(
		&g.ID,
		&g.PatientID,
		&doctorID,
		&capability,
		&issuance,
		&status,
		&g.Secret,
		&g.ShortCode,
		&policy,
		&expiresAt,
		&g.Reason,
		&g.CreatedAt,
		&g.UpdatedAt,
		&claimedAt,
		&revokedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return grants.Grant{}, grants.ErrNotFound
		}
		return grants.Grant{}, err
	}

	g.DoctorID = doctorID.String
	g.Capability = grants.Capability(capability)
	g.Issuance = grants.Issuance(issuance)
	g.Status = grants.Status(status)
	g.ExpiryPolicy = grants.ExpiryPolicy(policy)
	g.ExpiresAt = fromNullTime(expiresAt)
	g.ClaimedAt = fromNullTime(claimedAt)
	g.RevokedAt = fromNullTime(revokedAt)

	return g, nil
}

// helpers
func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
