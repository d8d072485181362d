package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/pagination"
)

func query(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func invalidParam(key, problem string) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid query parameter %q", key).
		WithDetails(map[string]string{key: problem})
}

// ParseQueryInt returns def when key is absent and rejects values outside
// [min, max].
func ParseQueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := query(r, key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, invalidParam(key, "must be an integer")
	case v < min || v > max:
		return 0, invalidParam(key, "must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return v, nil
}

func ParseQueryBool(r *http.Request, key string, def bool) (bool, error) {
	raw := query(r, key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidParam(key, "must be true or false")
	}
	return v, nil
}

// ParseQueryEnum runs parse on a non-empty value; the zero T means absent.
func ParseQueryEnum[T any](r *http.Request, key string, parse func(string) (T, error)) (T, error) {
	var zero T
	raw := query(r, key)
	if raw == "" {
		return zero, nil
	}
	v, err := parse(raw)
	if err != nil {
		return zero, invalidParam(key, err.Error())
	}
	return v, nil
}

// ParsePagination reads limit and cursor. A cursor that does not decode is
// rejected here rather than at the repository.
func ParsePagination(r *http.Request) (pagination.Params, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	cursor := query(r, "cursor")
	if _, err := pagination.ParseCursor(cursor); err != nil {
		return pagination.Params{}, invalidParam("cursor", "is not a cursor returned by this API")
	}
	return pagination.Params{Limit: limit, Cursor: cursor}, nil
}

func ParseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, key)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid %s", key).
			WithDetails(map[string]string{key: "must be a UUID"})
	}
	return id, nil
}
