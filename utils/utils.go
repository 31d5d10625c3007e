package utils

import (
	"net/http"
	"slices"

	"goimomi/globals"
)

// --- Slice Helpers ---

func Contains(slice []string, value string) bool {
	return slices.Contains(slice, value)
}

// --- Request Identity ---

func GetUsernameFromRequest(r *http.Request) string {
	name, _ := r.Context().Value(globals.UsernameKey).(string)
	return name
}
