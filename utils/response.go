package utils

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
)

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// RespondWithValidation renders validator errors as 400 with a per-field map.
// Any other error is rendered as a plain 400.
func RespondWithValidation(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusBadRequest, M{
		"error":  "validation failed",
		"fields": FieldErrors(verrs),
	})
}

// RespondInternal logs err and hides it from the client.
func RespondInternal(w http.ResponseWriter, op string, err error) {
	log.Printf("%s: %v", op, err)
	RespondWithError(w, http.StatusInternalServerError, "internal server error")
}

type M map[string]any
