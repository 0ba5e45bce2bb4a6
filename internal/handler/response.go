package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// decodeBody decodes a JSON request body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.ValidationError("Invalid request body")
	}
	return nil
}
