package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"sync"
)

const keyDerivationLabel = "authcore-access-token:"

// TenantKeys deriva la clave HS256 de cada tenant a partir del secreto del servidor.
// La derivación es determinística; el cache solo evita recalcular el HMAC.
type TenantKeys struct {
	secret []byte
	cache  sync.Map // tenantID -> []byte
}

func NewTenantKeys(serverSecret string) *TenantKeys {
	return &TenantKeys{secret: []byte(serverSecret)}
}

// Key devuelve HMAC-SHA256(serverSecret, label + tenantID) y la guarda en cache. Solo para
// tenants conocidos (firma); Decode usa verifyKey.
func (k *TenantKeys) Key(tenantID string) []byte {
	if v, ok := k.cache.Load(tenantID); ok {
		return v.([]byte)
	}
	v, _ := k.cache.LoadOrStore(tenantID, k.derive(tenantID))
	return v.([]byte)
}

// verifyKey no escribe el cache: el tenant_id viene de un token todavía sin verificar.
func (k *TenantKeys) verifyKey(tenantID string) []byte {
	if v, ok := k.cache.Load(tenantID); ok {
		return v.([]byte)
	}
	return k.derive(tenantID)
}

func (k *TenantKeys) derive(tenantID string) []byte {
	mac := hmac.New(sha256.New, k.secret)
	mac.Write([]byte(keyDerivationLabel + tenantID))
	return mac.Sum(nil)
}
