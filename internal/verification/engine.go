package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/redirect"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
)

// Observer recibe eventos del engine (métricas). Opcional.
type Observer interface {
	CodeCreated(codeType string)
	CodeUsed(codeType, outcome string)
}

// Deps son las dependencias compartidas por todos los engines.
type Deps struct {
	Codes    repository.VerificationCodeRepository
	Tx       repository.Transactor
	Now      func() time.Time
	Observer Observer
}

// Engine liga un Handler a un store.
type Engine[D Payload, M Payload, B any, R any] struct {
	h    Handler[D, M, B, R]
	deps Deps
}

// New valida la definición del handler.
func New[D Payload, M Payload, B any, R any](h Handler[D, M, B, R], deps Deps) *Engine[D, M, B, R] {
	if h.Type == "" || h.Consume == nil {
		panic("verification: handler requires Type and Consume")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Engine[D, M, B, R]{h: h, deps: deps}
}

// Type devuelve el tipo de código que maneja el engine.
func (e *Engine[D, M, B, R]) Type() repository.VerificationCodeType { return e.h.Type }

func (e *Engine[D, M, B, R]) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("verification"), logger.Op(op), logger.CodeType(string(e.h.Type)))
}

// CreateCode persiste un código nuevo y devuelve el secreto en claro.
func (e *Engine[D, M, B, R]) CreateCode(ctx context.Context, opts CreateOptions[D, M]) (*Code, error) {
	if opts.Project == nil {
		return nil, autherr.ErrProjectNotFound
	}
	if err := opts.Data.Validate(); err != nil {
		return nil, autherr.ErrInvalidInput.WithMessage("Invalid verification code data: " + err.Error())
	}
	if err := opts.Method.Validate(); err != nil {
		return nil, autherr.ErrInvalidInput.WithMessage("Invalid verification code method: " + err.Error())
	}
	cfg := opts.Project.Config
	if opts.CallbackURL != "" && !redirect.IsAllowed(opts.CallbackURL, cfg.Domains, cfg.AllowLocalhost) {
		return nil, autherr.ErrRedirectURLNotWhitelisted
	}
	expiresIn := opts.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = DefaultExpiry
	}

	data, err := json.Marshal(opts.Data)
	if err != nil {
		return nil, fmt.Errorf("verification: encode data: %w", err)
	}
	method, err := json.Marshal(opts.Method)
	if err != nil {
		return nil, fmt.Errorf("verification: encode method: %w", err)
	}
	raw, err := tokens.GenerateSecureRandomString()
	if err != nil {
		return nil, err
	}

	now := e.deps.Now()
	row := &repository.VerificationCode{
		ID:          uuid.NewString(),
		TenantID:    opts.Project.ID,
		Type:        e.h.Type,
		CodeHash:    tokens.SHA256Base64URL(raw),
		Method:      method,
		Data:        data,
		RedirectURL: opts.CallbackURL,
		CreatedAt:   now,
		ExpiresAt:   now.Add(expiresIn),
	}
	if err := e.deps.Codes.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("verification: create code: %w", err)
	}

	code := &Code{ID: row.ID, Code: raw, ExpiresAt: row.ExpiresAt}
	if opts.CallbackURL != "" {
		link, err := buildLink(opts.CallbackURL, raw)
		if err != nil {
			return nil, err
		}
		code.Link = link
	}
	if e.deps.Observer != nil {
		e.deps.Observer.CodeCreated(string(e.h.Type))
	}
	e.log(ctx, "CreateCode").Debug("verification code created",
		logger.TenantID(row.TenantID), logger.CodeID(row.ID), logger.Time("expires_at", row.ExpiresAt))
	return code, nil
}

func buildLink(callback, code string) (string, error) {
	u, err := url.Parse(callback)
	if err != nil {
		return "", autherr.ErrRedirectURLNotWhitelisted.WithCause(err)
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SendCode crea el código y lo entrega con el Send del handler.
func (e *Engine[D, M, B, R]) SendCode(ctx context.Context, opts CreateOptions[D, M], send SendOptions) (*Code, SendResult, error) {
	if e.h.Send == nil {
		return nil, SendResult{}, autherr.ErrNotSupported
	}
	code, err := e.CreateCode(ctx, opts)
	if err != nil {
		return nil, SendResult{}, err
	}
	res, err := e.h.Send(ctx, code, opts, send)
	if err != nil {
		return nil, SendResult{}, err
	}
	return code, res, nil
}

// UseCode canjea el código. El CAS y el side effect corren en una transacción: si Validate
// o Consume fallan, el código queda sin usar. Excepción: si Consume devuelve
// MultiFactorAuthenticationRequired el canje se confirma y se devuelve ese error.
func (e *Engine[D, M, B, R]) UseCode(ctx context.Context, req Request[B]) (R, error) {
	var zero, out R
	log := e.log(ctx, "UseCode")

	if err := validateBody(req.Body); err != nil {
		return zero, err
	}
	if req.Project == nil {
		return zero, autherr.ErrProjectNotFound
	}

	var followUp error
	err := e.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		followUp = nil
		hash := tokens.SHA256Base64URL(tokens.NormalizeCode(req.Code))
		row, err := e.deps.Codes.ConsumeIfValid(ctx, req.Project.ID, e.h.Type, hash, e.deps.Now())
		if repository.IsNotFound(err) {
			return e.classify(ctx, req.Project.ID, hash)
		}
		if err != nil {
			return err
		}

		in, err := e.input(row, req)
		if err != nil {
			return err
		}
		if e.h.Validate != nil {
			if err := e.h.Validate(ctx, in); err != nil {
				return err
			}
		}
		res, err := e.h.Consume(ctx, in)
		if err != nil {
			if autherr.HasCode(err, autherr.CodeMultiFactorAuthenticationRequired) {
				followUp = err
				return nil
			}
			return err
		}
		out = res
		return nil
	})
	e.observe(err, followUp)
	if err != nil {
		if _, known := autherr.As(err); !known {
			log.Error("use code failed", logger.TenantID(req.Project.ID), logger.Err(err))
		}
		return zero, err
	}
	if followUp != nil {
		return zero, followUp
	}
	return out, nil
}

func (e *Engine[D, M, B, R]) observe(err, followUp error) {
	if e.deps.Observer == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = string(autherr.CodeOf(err))
	case followUp != nil:
		outcome = string(autherr.CodeOf(followUp))
	}
	e.deps.Observer.CodeUsed(string(e.h.Type), outcome)
}

// classify explica por qué el CAS no encontró fila. El orden (expirado antes que usado)
// es parte del contrato con los clientes.
func (e *Engine[D, M, B, R]) classify(ctx context.Context, tenantID, hash string) error {
	row, err := e.deps.Codes.GetByCodeHash(ctx, tenantID, e.h.Type, hash)
	if repository.IsNotFound(err) {
		return autherr.ErrVerificationCodeNotFound
	}
	if err != nil {
		return err
	}
	return e.state(row)
}

func (e *Engine[D, M, B, R]) state(row *repository.VerificationCode) error {
	switch {
	case row.Expired(e.deps.Now()):
		return autherr.ErrVerificationCodeExpired
	case row.Used():
		return autherr.ErrVerificationCodeAlreadyUsed
	}
	return nil
}

// lookup es la lectura sin mutación de Check y Details.
func (e *Engine[D, M, B, R]) lookup(ctx context.Context, req Request[B]) (Input[D, M, B], error) {
	if req.Project == nil {
		return Input[D, M, B]{}, autherr.ErrProjectNotFound
	}
	hash := tokens.SHA256Base64URL(tokens.NormalizeCode(req.Code))
	row, err := e.deps.Codes.GetByCodeHash(ctx, req.Project.ID, e.h.Type, hash)
	if repository.IsNotFound(err) {
		return Input[D, M, B]{}, autherr.ErrVerificationCodeNotFound
	}
	if err != nil {
		return Input[D, M, B]{}, err
	}
	if err := e.state(row); err != nil {
		return Input[D, M, B]{}, err
	}
	return e.input(row, req)
}

// CheckCode valida el código sin consumirlo ni correr side effects.
func (e *Engine[D, M, B, R]) CheckCode(ctx context.Context, req Request[B]) error {
	_, err := e.lookup(ctx, req)
	return err
}

// GetDetails devuelve la vista del handler sin consumir el código.
func (e *Engine[D, M, B, R]) GetDetails(ctx context.Context, req Request[B]) (any, error) {
	if e.h.Details == nil {
		return nil, autherr.ErrNotSupported
	}
	in, err := e.lookup(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.h.Details(ctx, in)
}

// RevokeCode marca el código como usado sin side effect. NotFound si no existe o ya
// estaba usado; los flujos masivos lo ignoran.
func (e *Engine[D, M, B, R]) RevokeCode(ctx context.Context, project *repository.Project, id string) error {
	err := e.deps.Codes.MarkUsed(ctx, project.ID, e.h.Type, id, e.deps.Now())
	if repository.IsNotFound(err) {
		return autherr.ErrVerificationCodeNotFound
	}
	return err
}

// ListCodes lista los códigos activos del tipo cuya data cumple filter (nil = todos).
func (e *Engine[D, M, B, R]) ListCodes(ctx context.Context, project *repository.Project, filter func(D) bool) ([]Summary[D, M], error) {
	rows, err := e.deps.Codes.ListActive(ctx, project.ID, e.h.Type, e.deps.Now())
	if err != nil {
		return nil, err
	}
	out := make([]Summary[D, M], 0, len(rows))
	for _, row := range rows {
		var data D
		var method M
		if err := decodeStrict(row.Data, &data); err != nil {
			e.log(ctx, "ListCodes").Warn("skipping undecodable code", logger.CodeID(row.ID), logger.Err(err))
			continue
		}
		if err := decodeStrict(row.Method, &method); err != nil {
			e.log(ctx, "ListCodes").Warn("skipping undecodable code", logger.CodeID(row.ID), logger.Err(err))
			continue
		}
		if filter != nil && !filter(data) {
			continue
		}
		out = append(out, Summary[D, M]{ID: row.ID, Method: method, Data: data, CreatedAt: row.CreatedAt, ExpiresAt: row.ExpiresAt})
	}
	return out, nil
}

// input decodifica method/data guardados. Una fila que no cumple su esquema es un
// invariante roto, no un error del cliente.
func (e *Engine[D, M, B, R]) input(row *repository.VerificationCode, req Request[B]) (Input[D, M, B], error) {
	in := Input[D, M, B]{Project: req.Project, CodeID: row.ID, Body: req.Body, User: req.User}
	if err := decodeStrict(row.Data, &in.Data); err != nil {
		return in, autherr.ErrInternal.WithCause(fmt.Errorf("code %s data: %w", row.ID, err))
	}
	if err := in.Data.Validate(); err != nil {
		return in, autherr.ErrInternal.WithCause(fmt.Errorf("code %s data: %w", row.ID, err))
	}
	if err := decodeStrict(row.Method, &in.Method); err != nil {
		return in, autherr.ErrInternal.WithCause(fmt.Errorf("code %s method: %w", row.ID, err))
	}
	if err := in.Method.Validate(); err != nil {
		return in, autherr.ErrInternal.WithCause(fmt.Errorf("code %s method: %w", row.ID, err))
	}
	return in, nil
}

func decodeStrict(raw []byte, v any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func validateBody(body any) error {
	v, ok := body.(interface{ Validate() error })
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		var ae *autherr.Error
		if errors.As(err, &ae) {
			return ae
		}
		return autherr.SchemaError(err)
	}
	return nil
}
