package repository

import "errors"

var (
	// ErrNotFound indica que el recurso no existe (o no cumplió el predicado de un CAS).
	ErrNotFound = errors.New("not found")

	// ErrConflict indica violación de unicidad.
	ErrConflict = errors.New("conflict")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
