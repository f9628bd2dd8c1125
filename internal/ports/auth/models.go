package auth

type Role string

const (
	RolePatient  Role = "patient"
	RoleDoctor   Role = "doctor"
	RolePharmacy Role = "pharmacy"
	RoleHospital Role = "hospital"
)

// Claims representa la identidad atestada por el proveedor de sesiones.
// El core confía en esta identidad pero autoriza cada operación por su cuenta.
type Claims struct {
	UserID string
	Role   Role
	Phone  string
}
