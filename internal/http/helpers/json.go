// Package helpers tiene lo que comparten los controllers para leer y escribir JSON.
package helpers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
)

// MaxBodySize es el límite de los bodies JSON.
const MaxBodySize = 64 << 10

// ReadJSON decodifica el body en v. Body vacío = objeto vacío; errores de forma se
// devuelven como SCHEMA_ERROR.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if ct := strings.ToLower(r.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "application/json") {
		return autherr.SchemaError(errors.New("content-type must be application/json"))
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return autherr.SchemaError(err)
	}
	return nil
}

// WriteJSON escribe v con status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Success es la respuesta de las operaciones sin payload.
type Success struct {
	Success bool `json:"success"`
}

func WriteSuccess(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, Success{Success: true})
}
