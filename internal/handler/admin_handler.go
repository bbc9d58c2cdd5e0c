package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stmercy/portal/internal/middleware"
	"github.com/stmercy/portal/internal/model"
	"github.com/stmercy/portal/internal/repository"
	"github.com/stmercy/portal/internal/table"
)

// AdminHandler は管理者ポータルのHTTPハンドラー。
// 利用者管理・支払い・当直割当・苦情対応・医師推薦を扱う。
type AdminHandler struct {
	portalDeps
	sanitizer TextSanitizer
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(gateway BackendGateway, invalidator SessionInvalidator, preferences repository.PreferenceRepository, sanitizer TextSanitizer, cookieConfig middleware.CookieConfig, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
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
	adminStatsPath        = "/admin/stats"
	adminRecentUsersPath  = "/admin/users/recent"
	adminPaymentStatsPath = "/admin/payments/stats"
)

// Dashboard は管理者ダッシュボードの初期データを返す。
// GET /api/admin/dashboard
// 統計と直近の登録者を並行取得する。1つでも失敗すれば全体を失敗として返す。
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	results, err := h.gateway.Batch(r.Context(), session.Token, []string{
		adminStatsPath,
		adminRecentUsersPath,
		adminPaymentStatsPath,
	})
	if err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":         results[adminStatsPath],
		"recent_users":  results[adminRecentUsersPath],
		"payment_stats": results[adminPaymentStatsPath],
	})
}

// userColumns は利用者管理一覧の列定義。選択付き一括操作を想定する。
// 有効/無効の切り替えは現在の状態に応じたラベルで現れる。
func userColumns() []table.Column {
	return []table.Column{
		{Key: "name", Label: "Name", Sortable: true},
		{Key: "email", Label: "Email", Sortable: true},
		{Key: "active", Label: "Status", Sortable: true, Render: func(value any, _ model.Record) string {
			if active, _ := value.(bool); active {
				return "Active"
			}
			return "Inactive"
		}},
		{Key: "created_at", Label: "Registered", Sortable: true},
		{Key: "actions", Label: "Actions", Actions: table.ComputedActions(func(row model.Record) []table.Action {
			active, _ := row["active"].(bool)
			label, variant := "Deactivate", "danger"
			if !active {
				label, variant = "Activate", "primary"
			}
			return []table.Action{{
				Name:    "toggle_active",
				Label:   table.Static(label),
				Variant: table.Static(variant),
			}}
		})},
	}
}

func adminPaymentColumns() []table.Column {
	return []table.Column{
		{Key: "date", Label: "Date", Sortable: true},
		{Key: "patient_name", Label: "Patient", Sortable: true},
		{Key: "description", Label: "Description"},
		{Key: "amount", Label: "Amount", Sortable: true, Render: renderAmount},
		{Key: "method", Label: "Method", Sortable: true},
		{Key: "status", Label: "Status", Sortable: true, Render: renderStatus},
	}
}

func adminDutyColumns() []table.Column {
	return []table.Column{
		{Key: "date", Label: "Date", Sortable: true},
		{Key: "doctor_name", Label: "Doctor", Sortable: true},
		{Key: "shift", Label: "Shift", Sortable: true},
		{Key: "ward", Label: "Ward", Sortable: true},
		{Key: "actions", Label: "Actions", Actions: table.StaticActions(table.Action{
			Name:    "delete",
			Label:   table.Static("Delete"),
			Variant: table.Static("danger"),
		})},
	}
}

func complaintColumns() []table.Column {
	return []table.Column{
		{Key: "date", Label: "Date", Sortable: true},
		{Key: "patient_name", Label: "Patient", Sortable: true},
		{Key: "subject", Label: "Subject"},
		{Key: "status", Label: "Status", Sortable: true, Render: renderStatus},
		{Key: "actions", Label: "Actions", Actions: table.ComputedActions(func(row model.Record) []table.Action {
			actions := []table.Action{{
				Name:    "delete",
				Label:   table.Static("Delete"),
				Variant: table.Static("danger"),
			}}
			status, _ := row["status"].(string)
			if !strings.EqualFold(status, "resolved") {
				actions = append([]table.Action{{
					Name:    "reply",
					Label:   table.Static("Reply"),
					Variant: table.Static("primary"),
				}}, actions...)
			}
			return actions
		})},
	}
}

// Patients は患者アカウントの一覧をテーブルビューで返す。
// GET /api/admin/patients
func (h *AdminHandler) Patients(w http.ResponseWriter, r *http.Request) {
	h.listView(w, r, "/admin/patients", userColumns(), true, "No registered patients")
}

// Doctors は医師アカウントの一覧をテーブルビューで返す。
// GET /api/admin/doctors
func (h *AdminHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	h.listView(w, r, "/admin/doctors", userColumns(), true, "No registered doctors")
}

// registerUserRequest は利用者登録リクエストのボディ。
type registerUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// 医師登録時のみ使用する。
	Specialty string `json:"specialty,omitempty"`
}

// RegisterPatient は患者アカウントを登録する。
// POST /api/admin/patients
func (h *AdminHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	h.registerUser(w, r, "/admin/patients", false)
}

// RegisterDoctor は医師アカウントを登録する。
// POST /api/admin/doctors
func (h *AdminHandler) RegisterDoctor(w http.ResponseWriter, r *http.Request) {
	h.registerUser(w, r, "/admin/doctors", true)
}

func (h *AdminHandler) registerUser(w http.ResponseWriter, r *http.Request, path string, requireSpecialty bool) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}

	fields := make(map[string]string)
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "氏名を入力してください。"
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		fields["email"] = "メールアドレスを入力してください。"
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "メールアドレスの形式が正しくありません。"
	}
	if len(req.Password) < 8 {
		fields["password"] = "パスワードは8文字以上で入力してください。"
	}
	if requireSpecialty && strings.TrimSpace(req.Specialty) == "" {
		fields["specialty"] = "診療科を入力してください。"
	}
	if len(fields) > 0 {
		writeValidationFields(w, fields)
		return
	}

	body := map[string]string{
		"name":     strings.TrimSpace(req.Name),
		"email":    email,
		"password": req.Password,
	}
	if requireSpecialty {
		body["specialty"] = strings.TrimSpace(req.Specialty)
	}

	var created model.Record
	if err := h.gateway.JSON(r.Context(), http.MethodPost, path, session.Token, body, &created); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": created})
}

// ToggleActive は利用者アカウントの有効/無効を切り替える。
// POST /api/admin/users/{id}/toggle-active
func (h *AdminHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("利用者IDが指定されていません。"))
		return
	}

	path := fmt.Sprintf("/admin/users/%s/toggle-active", id)
	var updated model.Record
	if err := h.gateway.JSON(r.Context(), http.MethodPost, path, session.Token, nil, &updated); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": updated})
}

// Payments は全支払いの一覧をテーブルビューで返す。
// GET /api/admin/payments
func (h *AdminHandler) Payments(w http.ResponseWriter, r *http.Request) {
	h.listView(w, r, "/admin/payments", adminPaymentColumns(), false, "No payments recorded")
}

// Duties は当直割当の一覧をテーブルビューで返す。
// GET /api/admin/duties
func (h *AdminHandler) Duties(w http.ResponseWriter, r *http.Request) {
	h.listView(w, r, "/admin/duties", adminDutyColumns(), false, "No duties assigned")
}

// assignDutyRequest は当直割当リクエストのボディ。
type assignDutyRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Shift    string `json:"shift"`
	Ward     string `json:"ward"`
}

// AssignDuty は医師に当直を割り当てる。
// POST /api/admin/duties
func (h *AdminHandler) AssignDuty(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	var req assignDutyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}

	fields := make(map[string]string)
	if req.DoctorID == "" {
		fields["doctor_id"] = "医師を選択してください。"
	}
	if req.Date == "" {
		fields["date"] = "日付を入力してください。"
	}
	if req.Shift == "" {
		fields["shift"] = "シフトを選択してください。"
	}
	if len(fields) > 0 {
		writeValidationFields(w, fields)
		return
	}

	var created model.Record
	if err := h.gateway.JSON(r.Context(), http.MethodPost, "/admin/duties", session.Token, req, &created); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "duty": created})
}

// DeleteDuty は当直割当を削除する。
// DELETE /api/admin/duties/{id}
func (h *AdminHandler) DeleteDuty(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	path := fmt.Sprintf("/admin/duties/%s", id)
	if err := h.gateway.JSON(r.Context(), http.MethodDelete, path, session.Token, nil, nil); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Complaints は苦情の一覧をテーブルビューで返す。
// GET /api/admin/complaints
func (h *AdminHandler) Complaints(w http.ResponseWriter, r *http.Request) {
	h.listView(w, r, "/admin/complaints", complaintColumns(), false, "No complaints")
}

// replyComplaintRequest は苦情返信リクエストのボディ。
type replyComplaintRequest struct {
	Reply string `json:"reply"`
}

// ReplyComplaint は苦情に返信する。
// POST /api/admin/complaints/{id}/reply
func (h *AdminHandler) ReplyComplaint(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	var req replyComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}
	if strings.TrimSpace(req.Reply) == "" {
		writeValidationFields(w, map[string]string{"reply": "返信内容を入力してください。"})
		return
	}

	path := fmt.Sprintf("/admin/complaints/%s/reply", id)
	body := map[string]string{"reply": h.sanitizer.SanitizeText(req.Reply)}
	if err := h.gateway.JSON(r.Context(), http.MethodPost, path, session.Token, body, nil); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// DeleteComplaint は苦情を削除する。
// DELETE /api/admin/complaints/{id}
func (h *AdminHandler) DeleteComplaint(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	path := fmt.Sprintf("/admin/complaints/%s", id)
	if err := h.gateway.JSON(r.Context(), http.MethodDelete, path, session.Token, nil, nil); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// recommendDoctorRequest は医師推薦リクエストのボディ。
type recommendDoctorRequest struct {
	DoctorID string `json:"doctor_id"`
	Note     string `json:"note"`
}

// RecommendDoctor は医師を推薦リストに追加する。
// POST /api/admin/recommendations
func (h *AdminHandler) RecommendDoctor(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	var req recommendDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}
	if req.DoctorID == "" {
		writeValidationFields(w, map[string]string{"doctor_id": "医師を選択してください。"})
		return
	}

	body := map[string]string{
		"doctor_id": req.DoctorID,
		"note":      h.sanitizer.SanitizeText(req.Note),
	}
	var created model.Record
	if err := h.gateway.JSON(r.Context(), http.MethodPost, "/admin/recommendations", session.Token, body, &created); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "recommendation": created})
}
