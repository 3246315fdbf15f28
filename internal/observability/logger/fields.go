package logger

import (
	"time"

	"go.uber.org/zap"
)

// ─── HTTP ───

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }

// ─── Negocio ───

// TenantID identifica el proyecto.
func TenantID(v string) zap.Field { return zap.String("tenant_id", v) }

// UserID identifica al sujeto autenticado.
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// CodeType es el tipo de verification code (PASSWORD_RESET, MFA_ATTEMPT, ...).
func CodeType(v string) zap.Field { return zap.String("code_type", v) }

// CodeID es el id de fila de un verification code (nunca el secreto).
func CodeID(v string) zap.Field { return zap.String("code_id", v) }

// Provider es el id del proveedor OAuth upstream.
func Provider(v string) zap.Field { return zap.String("provider", v) }

// FlowType es authenticate | link.
func FlowType(v string) zap.Field { return zap.String("flow_type", v) }

// ErrorCode es el código estable de un error conocido.
func ErrorCode(v string) zap.Field { return zap.String("error_code", v) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }

// ─── Genéricos ───

func String(key, v string) zap.Field         { return zap.String(key, v) }
func Int(key string, v int) zap.Field        { return zap.Int(key, v) }
func Int64(key string, v int64) zap.Field    { return zap.Int64(key, v) }
func Bool(key string, v bool) zap.Field      { return zap.Bool(key, v) }
func Time(key string, v time.Time) zap.Field { return zap.Time(key, v) }
func Any(key string, v any) zap.Field        { return zap.Any(key, v) }
