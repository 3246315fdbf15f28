// Package logger expone un logger Zap singleton con scoping por contexto.
//
// Inicialización (una vez, en el comando serve):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "authcore"})
//	defer logger.Sync()
//
// En services y controllers:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("verification.use"))
//	log.Info("code consumed", logger.TenantID(tenantID), logger.CodeType(string(t)))
//
// Env "dev" usa consola con colores; "prod" usa JSON con stacktrace desde error.
package logger
