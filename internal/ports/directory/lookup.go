package directory

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("directory: not found")

// Person es lo mínimo que el core necesita del directorio de usuarios.
type Person struct {
	ID    string
	Name  string
	Phone string
}

// Lookup resuelve teléfonos a identidades registradas.
// La implementación vive en el servicio de directorio (externo).
type Lookup interface {
	ResolvePatientPhone(ctx context.Context, phone string) (Person, error)
	ResolveDoctorPhone(ctx context.Context, phone string) (Person, error)
}
