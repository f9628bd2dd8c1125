package console

import (
	"context"

	"healsync/internal/platform/logger"
)

// Dispatcher escribe el OTP al log en lugar de enviarlo.
// Solo para dev local, cuando no hay gateway de mensajería configurado.
type Dispatcher struct {
	log logger.Logger
}

func NewDispatcher(log logger.Logger) *Dispatcher {
	return &Dispatcher{log: log}
}

func (d *Dispatcher) SendOTP(ctx context.Context, patientID, phone, code string) error {
	d.log.Info("otp dispatch (dev console)", map[string]any{
		"patientId": patientID,
		"phone":     phone,
		"code":      code,
	})
	return nil
}
