// Package verification es el motor genérico de códigos de verificación: secretos de un solo
// uso, con tipo y expiración, que autorizan una transición (reset de password, verificación
// de email, OTP, invitaciones, challenges de passkey, intentos de MFA).
//
// Cada caso de uso se define con un Handler tipado y se instancia con New. El engine
// garantiza el consumo exactly-once con un compare-and-swap sobre el store.
package verification

import (
	"context"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// DefaultExpiry de un código si CreateOptions.ExpiresIn es cero.
const DefaultExpiry = 7 * 24 * time.Hour

// Payload es el contrato de los esquemas de data y method.
type Payload interface {
	Validate() error
}

// Code es lo que devuelve CreateCode. Code (el secreto en claro) solo existe acá.
type Code struct {
	ID        string
	Code      string
	Link      string // callbackURL?code=..., vacío sin callback
	ExpiresAt time.Time
}

// CreateOptions parametriza CreateCode.
type CreateOptions[D, M any] struct {
	Project     *repository.Project
	Method      M
	Data        D
	ExpiresIn   time.Duration
	CallbackURL string
}

// SendOptions es contexto extra para el Send del handler.
type SendOptions struct {
	User *repository.User
}

// SendResult lo que Send quiera devolver al caller (p.ej. el nonce del OTP).
type SendResult struct {
	Nonce string
}

// Request es un canje/chequeo de un código presentado por un cliente.
type Request[B any] struct {
	Project *repository.Project
	Code    string
	Body    B
	User    *repository.User // usuario autenticado de la request, si hay
}

// Input es lo que reciben los hooks del handler, ya validado.
type Input[D, M, B any] struct {
	Project *repository.Project
	CodeID  string
	Method  M
	Data    D
	Body    B
	User    *repository.User
}

// Handler define un tipo de código. Consume es obligatorio.
type Handler[D Payload, M Payload, B any, R any] struct {
	Type repository.VerificationCodeType

	// Send entrega el código (email, etc.). Sin Send, SendCode devuelve NotSupported.
	Send func(ctx context.Context, code *Code, opts CreateOptions[D, M], send SendOptions) (SendResult, error)

	// Validate corre dentro de la transacción de UseCode, antes de Consume. Un error
	// hace rollback y el código sigue disponible.
	Validate func(ctx context.Context, in Input[D, M, B]) error

	// Consume es el side effect del canje.
	Consume func(ctx context.Context, in Input[D, M, B]) (R, error)

	// Details arma una vista no sensible del código sin consumirlo.
	Details func(ctx context.Context, in Input[D, M, B]) (any, error)
}

// Summary es un código activo listado por ListCodes.
type Summary[D, M any] struct {
	ID        string
	Method    M
	Data      D
	CreatedAt time.Time
	ExpiresAt time.Time
}
