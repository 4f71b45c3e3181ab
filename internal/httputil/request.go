package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// MaxBodyBytes bounds request bodies
const MaxBodyBytes = 10 << 20

// ParseJSON decodes JSON from the request body into dest.
// Unknown fields are ignored; validation happens in the handlers.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
