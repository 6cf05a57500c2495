package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/service"
)

func TestMapServiceError_AllKnown(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "bad request", err: service.ErrBadRequest, wantStatus: http.StatusBadRequest},
		{name: "wrapped bad request", err: fmt.Errorf("%w: content too long", service.ErrBadRequest), wantStatus: http.StatusBadRequest},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mapped := mapServiceError(w, tt.err)
			if !mapped {
				t.Fatalf("expected mapped=true")
			}
			if w.Code != tt.wantStatus {
				t.Fatalf("status=%d want=%d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), `"status":"error"`) {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
		})
	}
}

func TestMapServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	if mapped := mapServiceError(w, nil); mapped {
		t.Fatalf("expected mapped=false for nil")
	}
	if w.Code != 200 {
		t.Fatalf("unexpected status for nil mapping: %d", w.Code)
	}
}
