package main

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

// uaPhone matches Ukrainian numbers with or without the +38 prefix.
var uaPhone = regexp.MustCompile(`^(\+?38)?0\d{9}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	// e.g. +380501234567, 380501234567, 050 123-45-67
	Validate.RegisterValidation("uaphone", func(fl validator.FieldLevel) bool {
		return validPhone(fl.Field().String())
	})
}

func validPhone(phone string) bool {
	return uaPhone.MatchString(phoneSeparators.Replace(strings.TrimSpace(phone)))
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// it parses body into Go struct.
func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	maxBytes := 1_048_578 //1mb
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(data)
}

// readLooseJSON is readJSON for documents the admin UI sends back as it
// received them (with _id, slug, timestamps); unknown fields are ignored.
func readLooseJSON(w http.ResponseWriter, r *http.Request, data any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	return json.NewDecoder(r.Body).Decode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) error {
	type envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	}

	return writeJSON(w, status, &envelope{
		Success: false,
		Message: message,
		Status:  status,
	})
}
