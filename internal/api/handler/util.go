package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/ayo6706/ebanking-core/internal/api/middleware"
	"github.com/ayo6706/ebanking-core/internal/api/problem"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = newValidator()

// newValidator reports fields by their json names so messages match the
// request body the client sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestOwner(r *http.Request) (uuid.UUID, error) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, errors.New("missing owner in auth context")
	}
	return ownerID, nil
}

// decodeBody decodes a JSON body into dst and runs its validate tags.
// The returned error message is safe to show to clients.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("field %s failed validation on '%s'", verrs[0].Field(), verrs[0].Tag())
		}
		return errors.New("Invalid request body")
	}
	return nil
}
