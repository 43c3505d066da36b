package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/motorlot/marketplace-api/internal/auth"
	"github.com/motorlot/marketplace-api/internal/lifecycle"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

var (
	requestValidator = validator.New(validator.WithRequiredStructEnabled())
	errTrailingJSON  = errors.New("request body must contain a single JSON object")
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// decodeJSON reads exactly one JSON object and rejects unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if decoder.More() {
		return errTrailingJSON
	}
	return nil
}

// decodeAndValidate decodes the body and runs the struct's validate tags.
// It writes the error response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	err := requestValidator.Struct(dst)
	if err == nil {
		return true
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	body := errorBody{Error: "validation failed", Fields: make(map[string]string, len(invalid))}
	for _, fieldErr := range invalid {
		body.Fields[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	writeJSON(w, http.StatusBadRequest, body)
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// actorFromRequest builds the engine actor from the request identity.
// Anonymous requests get the zero actor, which owns nothing.
func actorFromRequest(r *http.Request) (lifecycle.Actor, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return lifecycle.Actor{}, false
	}
	showroomID, _ := identity.Showroom()
	return lifecycle.Actor{UserID: identity.UserID, Role: identity.Role, ShowroomID: showroomID}, true
}

// pageParams reads limit and offset, writing a 400 when either is out of
// range.
func pageParams(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	query := r.URL.Query()
	limit, err := queryInt(query.Get("limit"), defaultPageLimit, 1, maxPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit "+err.Error())
		return 0, 0, false
	}
	offset, err = queryInt(query.Get("offset"), 0, 0, -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset "+err.Error())
		return 0, 0, false
	}
	return limit, offset, true
}

// queryInt parses raw within [lo, hi]; hi < 0 means unbounded.
func queryInt(raw string, fallback, lo, hi int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, errors.New("must be an integer")
	case value < lo:
		return 0, fmt.Errorf("must be at least %d", lo)
	case hi >= 0 && value > hi:
		return 0, fmt.Errorf("must be at most %d", hi)
	}
	return value, nil
}
