package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/stmercy/portal/internal/middleware"
	"github.com/stmercy/portal/internal/model"
	"github.com/stmercy/portal/internal/repository"
	"github.com/stmercy/portal/internal/table"
)

// DoctorHandler は医師ポータルのHTTPハンドラー。
// ダッシュボード・担当患者・報告書作成・当直予定・管理者への連絡を扱う。
type DoctorHandler struct {
	portalDeps
	sanitizer TextSanitizer
}

// NewDoctorHandler はDoctorHandlerを生成する。
func NewDoctorHandler(gateway BackendGateway, invalidator SessionInvalidator, preferences repository.PreferenceRepository, sanitizer TextSanitizer, cookieConfig middleware.CookieConfig, logger *slog.Logger) *DoctorHandler {
	return &DoctorHandler{
		portalDeps: portalDeps{
			gateway:      gateway,
			invalidator:  invalidator,
			preferences:  preferences,
			cookieConfig: cookieConfig,
			logger:       logger,
		},
		sanitizer: sanitizer,
	}
}

// ダッシュボードで並行取得するコレクション。
const (
	doctorAppointmentsPath = "/doctor/appointments/today"
	doctorDutiesTodayPath  = "/doctor/duties/today"
	doctorReportsPath      = "/doctor/reports/recent"
)

// Dashboard は医師ダッシュボードの初期データを返す。
// GET /api/doctor/dashboard
// 3つのコレクションを並行取得し、1つでも失敗すれば全体を失敗として返す
// （部分的なダッシュボードは表示しない）。
func (h *DoctorHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	results, err := h.gateway.Batch(r.Context(), session.Token, []string{
		doctorAppointmentsPath,
		doctorDutiesTodayPath,
		doctorReportsPath,
	})
	if err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": results[doctorAppointmentsPath],
		"duties":       results[doctorDutiesTodayPath],
		"reports":      results[doctorReportsPath],
	})
}

func doctorPatientColumns() []table.Column {
	return []table.Column{
		{Key: "name", Label: "Patient", Sortable: true},
		{Key: "email", Label: "Email", Sortable: true},
		{Key: "age", Label: "Age", Sortable: true},
		{Key: "last_visit", Label: "Last Visit", Sortable: true},
		{Key: "actions", Label: "Actions", Actions: table.StaticActions(table.Action{
			Name:    "write_report",
			Label:   table.Static("Write Report"),
			Variant: table.Static("primary"),
		})},
	}
}

func dutyColumns() []table.Column {
	return []table.Column{
		{Key: "date", Label: "Date", Sortable: true},
		{Key: "shift", Label: "Shift", Sortable: true},
		{Key: "ward", Label: "Ward", Sortable: true},
		{Key: "status", Label: "Status", Render: renderStatus},
	}
}

// Patients は担当患者の一覧をテーブルビューで返す。
// GET /api/doctor/patients
func (h *DoctorHandler) Patients(w http.ResponseWriter, r *http.Request) {
	h.listView(w, r, "/doctor/patients", doctorPatientColumns(), false, "No assigned patients")
}

// writeReportRequest は診断報告書作成リクエストのボディ。
type writeReportRequest struct {
	PatientID string `json:"patient_id"`
	Diagnosis string `json:"diagnosis"`
	Notes     string `json:"notes"`
}

// WriteReport は診断報告書を作成する。
// POST /api/doctor/reports
func (h *DoctorHandler) WriteReport(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	var req writeReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}

	fields := make(map[string]string)
	if req.PatientID == "" {
		fields["patient_id"] = "患者を選択してください。"
	}
	if strings.TrimSpace(req.Diagnosis) == "" {
		fields["diagnosis"] = "診断内容を入力してください。"
	}
	if len(fields) > 0 {
		writeValidationFields(w, fields)
		return
	}

	body := map[string]string{
		"patient_id": req.PatientID,
		"diagnosis":  h.sanitizer.SanitizeText(req.Diagnosis),
		"notes":      h.sanitizer.SanitizeText(req.Notes),
	}
	var created model.Record
	if err := h.gateway.JSON(r.Context(), http.MethodPost, "/doctor/reports", session.Token, body, &created); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "report": created})
}

// Duties は当直予定の一覧をテーブルビューで返す。
// GET /api/doctor/duties?from=YYYY-MM-DD&to=YYYY-MM-DD
// 期間指定はそのままバックエンドへ引き渡す（絞り込みは上流の責務）。
func (h *DoctorHandler) Duties(w http.ResponseWriter, r *http.Request) {
	path := "/doctor/duties"
	query := url.Values{}
	if from := r.URL.Query().Get("from"); from != "" {
		query.Set("from", from)
	}
	if to := r.URL.Query().Get("to"); to != "" {
		query.Set("to", to)
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	h.listView(w, r, path, dutyColumns(), false, "No duties scheduled")
}

// messageAdminRequest は管理者への連絡リクエストのボディ。
type messageAdminRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// MessageAdmin は管理者へメッセージを送る。
// POST /api/doctor/messages
func (h *DoctorHandler) MessageAdmin(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	var req messageAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}

	fields := make(map[string]string)
	if strings.TrimSpace(req.Subject) == "" {
		fields["subject"] = "件名を入力してください。"
	}
	if strings.TrimSpace(req.Message) == "" {
		fields["message"] = "内容を入力してください。"
	}
	if len(fields) > 0 {
		writeValidationFields(w, fields)
		return
	}

	body := map[string]string{
		"subject": h.sanitizer.SanitizeText(req.Subject),
		"message": h.sanitizer.SanitizeText(req.Message),
	}
	if err := h.gateway.JSON(r.Context(), http.MethodPost, "/doctor/messages", session.Token, body, nil); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}
