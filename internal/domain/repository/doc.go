// Package repository define las interfaces de almacenamiento que usa el core.
//
// Son contratos de negocio independientes del backend:
//
//	┌──────────────────────────────────────────────┐
//	│  verification / session / oauth / mfa / flows │
//	└──────────────────────────────────────────────┘
//	                      │
//	                      ▼
//	┌──────────────────────────────────────────────┐
//	│      domain/repository (interfaces + tipos)   │
//	└──────────────────────────────────────────────┘
//	          │                │              │
//	          ▼                ▼              ▼
//	   store/pg (pgx)   store/memory   store/redisstate
//
// Convenciones:
//   - Context siempre primer parámetro; tenantID explícito.
//   - Los secretos (códigos, refresh tokens, authorization codes) se guardan hasheados.
//   - Las operaciones "Consume"/"Take" son compare-and-swap atómicos: nunca read-then-write.
//   - Dentro de Transactor.WithTx, los repositorios usan la transacción del contexto.
package repository
