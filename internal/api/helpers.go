package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/service"
	"github.com/bohdanPatriot/polska-jednostka-online/pkg/api/response"
)

func mapServiceError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, service.ErrBadRequest):
		response.Error(w, http.StatusBadRequest, "invalid request")
	default:
		response.Error(w, http.StatusInternalServerError, "internal error")
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

const maxBodyBytes = 64 << 10

func queryInt(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
