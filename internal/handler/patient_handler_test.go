package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stmercy/portal/internal/backend"
	"github.com/stmercy/portal/internal/model"
)

func TestPatientHandler_Appointments_ReturnsTableView(t *testing.T) {
	gateway := &mockGateway{
		listRecordsFunc: func(_ context.Context, token, path string) ([]model.Record, error) {
			if token != "token-1" {
				t.Errorf("token = %s, want token-1", token)
			}
			if path != "/patient/appointments" {
				t.Errorf("path = %s, want /patient/appointments", path)
			}
			return []model.Record{
				{"id": "a2", "date": "2026-09-02", "status": "pending"},
				{"id": "a1", "date": "2026-09-01", "status": "completed"},
			}, nil
		},
	}
	handler := newTestPatientHandler(gateway, &mockInvalidator{}, nil)

	r := newSessionRequest(t, http.MethodGet, "/api/patient/appointments?sort=date&dir=asc", nil, patientSession())
	rec := httptest.NewRecorder()
	handler.Appointments(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	body := decodeBody(t, rec)
	rows, ok := body["rows"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("rows = %v, want 2 rows", body["rows"])
	}
	first := rows[0].(map[string]any)
	if first["id"] != "a1" {
		t.Errorf("first row id = %v, want a1 (sorted by date asc)", first["id"])
	}

	// キャンセル操作はpendingの行にのみ現れる
	second := rows[1].(map[string]any)
	if _, hasActions := second["actions"]; !hasActions {
		t.Error("pending appointment should have a cancel action")
	}
	if _, hasActions := first["actions"]; hasActions {
		t.Error("completed appointment should have no actions")
	}
}

func TestPatientHandler_Appointments_BackendUnauthorized(t *testing.T) {
	gateway := &mockGateway{
		listRecordsFunc: func(context.Context, string, string) ([]model.Record, error) {
			return nil, fmt.Errorf("GET /patient/appointments: %w", backend.ErrUnauthorized)
		},
	}
	invalidator := &mockInvalidator{}
	handler := newTestPatientHandler(gateway, invalidator, nil)

	session := patientSession()
	r := newSessionRequest(t, http.MethodGet, "/api/patient/appointments", nil, session)
	rec := httptest.NewRecorder()
	handler.Appointments(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	body := decodeBody(t, rec)
	if body["code"] != model.ErrCodeSessionExpired {
		t.Errorf("code = %v, want %s", body["code"], model.ErrCodeSessionExpired)
	}
	if len(invalidator.invalidated) != 1 || invalidator.invalidated[0] != session.ID {
		t.Errorf("invalidated = %v, want [%s]", invalidator.invalidated, session.ID)
	}
}

func TestPatientHandler_Appointments_BackendUnavailableKeepsSession(t *testing.T) {
	gateway := &mockGateway{
		listRecordsFunc: func(context.Context, string, string) ([]model.Record, error) {
			return nil, model.NewBackendUnavailableError("connection refused")
		},
	}
	invalidator := &mockInvalidator{}
	handler := newTestPatientHandler(gateway, invalidator, nil)

	r := newSessionRequest(t, http.MethodGet, "/api/patient/appointments", nil, patientSession())
	rec := httptest.NewRecorder()
	handler.Appointments(rec, r)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if len(invalidator.invalidated) != 0 {
		t.Errorf("fetch failure should not invalidate session, got %v", invalidator.invalidated)
	}
}

func TestPatientHandler_BookAppointment_Validation(t *testing.T) {
	gateway := &mockGateway{
		jsonFunc: func(context.Context, string, string, string, any, any) error {
			t.Fatal("backend should not be called on validation failure")
			return nil
		},
	}
	handler := newTestPatientHandler(gateway, &mockInvalidator{}, nil)

	r := newSessionRequest(t, http.MethodPost, "/api/patient/appointments", map[string]string{
		"reason": "checkup",
	}, patientSession())
	rec := httptest.NewRecorder()
	handler.BookAppointment(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	fields := decodeBody(t, rec)["fields"].(map[string]any)
	for _, key := range []string{"doctor_id", "date", "time"} {
		if _, present := fields[key]; !present {
			t.Errorf("%s field error missing", key)
		}
	}
}

func TestPatientHandler_CancelAppointment(t *testing.T) {
	var calledPath string
	gateway := &mockGateway{
		jsonFunc: func(_ context.Context, method, path, token string, _, _ any) error {
			if method != http.MethodPost {
				t.Errorf("method = %s, want POST", method)
			}
			calledPath = path
			return nil
		},
	}
	handler := newTestPatientHandler(gateway, &mockInvalidator{}, nil)

	r := newSessionRequest(t, http.MethodPost, "/api/patient/appointments/a1/cancel", nil, patientSession())
	r = withURLParam(r, "id", "a1")
	rec := httptest.NewRecorder()
	handler.CancelAppointment(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if calledPath != "/patient/appointments/a1/cancel" {
		t.Errorf("path = %s, want /patient/appointments/a1/cancel", calledPath)
	}
}

func TestPatientHandler_DownloadReport_StreamsPDF(t *testing.T) {
	gateway := &mockGateway{
		rawFunc: func(_ context.Context, path, token string) (*http.Response, error) {
			if path != "/patient/reports/r1/pdf" {
				t.Errorf("path = %s, want /patient/reports/r1/pdf", path)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/pdf"}},
				Body:       io.NopCloser(strings.NewReader("%PDF-1.7 test")),
			}, nil
		},
	}
	handler := newTestPatientHandler(gateway, &mockInvalidator{}, nil)

	r := newSessionRequest(t, http.MethodGet, "/api/patient/reports/r1/download", nil, patientSession())
	r = withURLParam(r, "id", "r1")
	rec := httptest.NewRecorder()
	handler.DownloadReport(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %s, want application/pdf", got)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "report-r1.pdf") {
		t.Errorf("Content-Disposition = %s, want filename report-r1.pdf", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.String() != "%PDF-1.7 test" {
		t.Errorf("body = %s, want raw PDF bytes", rec.Body.String())
	}
}

func TestPatientHandler_PayMpesa_PhoneValidation(t *testing.T) {
	tests := []struct {
		name     string
		phone    string
		wantCode int
	}{
		{"local format", "0712345678", http.StatusOK},
		{"international format", "254712345678", http.StatusOK},
		{"with plus and spaces", "+254 712 345 678", http.StatusOK},
		{"with hyphens", "0712-345-678", http.StatusOK},
		{"too short", "07123", http.StatusBadRequest},
		{"landline prefix", "0201234567", http.StatusBadRequest},
		{"empty", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := &mockGateway{
				jsonFunc: func(_ context.Context, _, _, _ string, body, _ any) error {
					phone := body.(map[string]string)["phone"]
					if strings.ContainsAny(phone, " -+") {
						t.Errorf("phone %q should be normalized before forwarding", phone)
					}
					return nil
				},
			}
			handler := newTestPatientHandler(gateway, &mockInvalidator{}, nil)

			r := newSessionRequest(t, http.MethodPost, "/api/patient/payments/p1/mpesa", map[string]string{
				"phone": tt.phone,
			}, patientSession())
			r = withURLParam(r, "id", "p1")
			rec := httptest.NewRecorder()
			handler.PayMpesa(rec, r)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestRenderStatus(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"lowercases tail", "PENDING", "Pending"},
		{"capitalizes first", "confirmed", "Confirmed"},
		{"multibyte first rune", "未払い", "未払い"},
		{"empty", "", ""},
		{"non-string", 42, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderStatus(tt.value, nil)
			if got != tt.want {
				t.Errorf("renderStatus(%v) = %q, want %q", tt.value, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("renderStatus(%v) = %q, invalid UTF-8", tt.value, got)
			}
		})
	}
}

func TestPatientHandler_FileComplaint_SanitizesInput(t *testing.T) {
	var sent map[string]string
	gateway := &mockGateway{
		jsonFunc: func(_ context.Context, _, path, _ string, body, _ any) error {
			if path != "/patient/complaints" {
				t.Errorf("path = %s, want /patient/complaints", path)
			}
			sent = body.(map[string]string)
			return nil
		},
	}
	handler := newTestPatientHandler(gateway, &mockInvalidator{}, nil)

	r := newSessionRequest(t, http.MethodPost, "/api/patient/complaints", map[string]string{
		"subject": "Long wait",
		"message": "<b>two hours</b> in line",
	}, patientSession())
	rec := httptest.NewRecorder()
	handler.FileComplaint(rec, r)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if sent["subject"] != "clean:Long wait" {
		t.Errorf("subject = %s, want sanitized", sent["subject"])
	}
	if sent["message"] != "clean:<b>two hours</b> in line" {
		t.Errorf("message = %s, want sanitized", sent["message"])
	}
}

func TestPatientHandler_News(t *testing.T) {
	news := &mockNewsLister{
		listFunc: func(_ context.Context, limit int) ([]*model.NewsItem, error) {
			if limit != 20 {
				t.Errorf("limit = %d, want 20", limit)
			}
			return []*model.NewsItem{{ID: "n1", Title: "Flu season"}}, nil
		},
	}
	handler := newTestPatientHandler(&mockGateway{}, &mockInvalidator{}, news)

	r := newSessionRequest(t, http.MethodGet, "/api/patient/news?limit=20", nil, patientSession())
	rec := httptest.NewRecorder()
	handler.News(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	items, ok := decodeBody(t, rec)["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("items missing from response")
	}
}
