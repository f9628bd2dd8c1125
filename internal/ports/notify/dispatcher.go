package notify

import "context"

// Dispatcher entrega el OTP al paciente por un canal externo (WhatsApp/SMS).
// El envío es best-effort pero el resultado se reporta al caller: una request
// cuyo OTP nunca llegó no debe quedar viva en silencio.
type Dispatcher interface {
	SendOTP(ctx context.Context, patientID, phone, code string) error
}
