package audit

import "time"

type Action string

const (
	ActionGrantIssued      Action = "grant-issued"
	ActionAccessClaimed    Action = "access-claimed"
	ActionRecordViewed     Action = "record-viewed"
	ActionRecordUploaded   Action = "record-uploaded"
	ActionRecordEditDenied Action = "record-edited-attempt-denied"
	ActionAccessRevoked    Action = "access-revoked"
)

// Entry es inmutable una vez escrita; el log es append-only.
type Entry struct {
	ID        string
	PatientID string
	DoctorID  string
	Action    Action
	Timestamp time.Time
	Details   map[string]any
}
