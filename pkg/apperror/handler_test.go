package apperror

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serve(t *testing.T, method string, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	handler := HTTPErrorHandler(slog.Default())

	req := httptest.NewRequest(method, "/api/jobs/7", nil)
	rec := httptest.NewRecorder()
	handler(err, e.NewContext(req, rec))

	if method == http.MethodHead {
		return rec, nil
	}
	var resp map[string]any
	if jerr := json.Unmarshal(rec.Body.Bytes(), &resp); jerr != nil {
		t.Fatalf("Failed to parse response: %v", jerr)
	}
	return rec, resp["error"].(map[string]any)
}

func TestHTTPErrorHandler_AppError(t *testing.T) {
	rec, errObj := serve(t, http.MethodGet, NewBadRequest("invalid input"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if errObj["code"] != "bad_request" {
		t.Errorf("Code = %v, want bad_request", errObj["code"])
	}
	if errObj["message"] != "invalid input" {
		t.Errorf("Message = %v, want 'invalid input'", errObj["message"])
	}
}

func TestHTTPErrorHandler_WrappedAppError(t *testing.T) {
	rec, errObj := serve(t, http.MethodPost, fmt.Errorf("submit: %w", NewDependencyUnavailable("Queue not found", nil)))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if errObj["code"] != "dependency_unavailable" {
		t.Errorf("Code = %v, want dependency_unavailable", errObj["code"])
	}
	if errObj["message"] != "Queue not found" {
		t.Errorf("Message = %v, want 'Queue not found'", errObj["message"])
	}
}

func TestHTTPErrorHandler_EchoError_StatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		wantCode string
	}{
		{http.StatusBadRequest, "bad_request"},
		{http.StatusNotFound, "not_found"},
		{http.StatusMethodNotAllowed, "method_not_allowed"},
		{http.StatusRequestEntityTooLarge, "payload_too_large"},
		{http.StatusBadGateway, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			rec, errObj := serve(t, http.MethodGet, echo.NewHTTPError(tt.status, "msg"))
			if rec.Code != tt.status {
				t.Errorf("Status = %d, want %d", rec.Code, tt.status)
			}
			if errObj["code"] != tt.wantCode {
				t.Errorf("Code = %v, want %s", errObj["code"], tt.wantCode)
			}
			if errObj["message"] != "msg" {
				t.Errorf("Message = %v, want msg", errObj["message"])
			}
		})
	}
}

func TestHTTPErrorHandler_StructuredEchoError(t *testing.T) {
	rec, errObj := serve(t, http.MethodGet, NewInvalidInput("file", "Invalid file type").ToEchoError())

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
	if errObj["code"] != "invalid_input" {
		t.Errorf("Code = %v, want invalid_input", errObj["code"])
	}
	details, ok := errObj["details"].(map[string]any)
	if !ok || details["field"] != "file" {
		t.Errorf("details = %v, want field=file", errObj["details"])
	}
}

func TestHTTPErrorHandler_GenericError(t *testing.T) {
	rec, errObj := serve(t, http.MethodGet, fmt.Errorf("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", rec.Code)
	}
	if errObj["code"] != "internal_error" {
		t.Errorf("Code = %v, want internal_error", errObj["code"])
	}
}

func TestHTTPErrorHandler_Head(t *testing.T) {
	rec, _ := serve(t, http.MethodHead, NewNotFound("job", "7"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body should be empty, got %q", rec.Body.String())
	}
}
