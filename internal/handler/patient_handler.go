package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/stmercy/portal/internal/middleware"
	"github.com/stmercy/portal/internal/model"
	"github.com/stmercy/portal/internal/repository"
	"github.com/stmercy/portal/internal/table"
)

// mpesaPhonePattern はM-Pesa STKプッシュに使えるケニアの携帯番号形式。
// 空白・ハイフン・先頭の+を除去した後に適用する。
var mpesaPhonePattern = regexp.MustCompile(`^(?:2547|07)\d{8}$`)

// TextSanitizer は利用者入力の自由記述からマークアップを除去する。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// NewsLister は患者ポータル向けの保健ニュース一覧を提供する。
type NewsLister interface {
	ListNews(ctx context.Context, limit int) ([]*model.NewsItem, error)
}

// PatientHandler は患者ポータルのHTTPハンドラー。
// 予約・報告書・支払い・苦情・保健ニュースを扱う。
type PatientHandler struct {
	portalDeps
	sanitizer TextSanitizer
	news      NewsLister
}

// NewPatientHandler はPatientHandlerを生成する。
func NewPatientHandler(gateway BackendGateway, invalidator SessionInvalidator, preferences repository.PreferenceRepository, sanitizer TextSanitizer, news NewsLister, cookieConfig middleware.CookieConfig, logger *slog.Logger) *PatientHandler {
	return &PatientHandler{
		portalDeps: portalDeps{
			gateway:      gateway,
			invalidator:  invalidator,
			preferences:  preferences,
			cookieConfig: cookieConfig,
			logger:       logger,
		},
		sanitizer: sanitizer,
		news:      news,
	}
}

// appointmentColumns は患者の予約一覧の列定義。
// キャンセル操作は未完了の予約にのみ現れる。
func appointmentColumns() []table.Column {
	return []table.Column{
		{Key: "date", Label: "Date", Sortable: true},
		{Key: "time", Label: "Time", Sortable: true},
		{Key: "doctor_name", Label: "Doctor", Sortable: true},
		{Key: "reason", Label: "Reason"},
		{Key: "status", Label: "Status", Sortable: true, Render: renderStatus},
		{Key: "actions", Label: "Actions", Actions: table.ComputedActions(func(row model.Record) []table.Action {
			status, _ := row["status"].(string)
			switch strings.ToLower(status) {
			case "pending", "confirmed":
				return []table.Action{{
					Name:    "cancel",
					Label:   table.Static("Cancel"),
					Variant: table.Static("danger"),
				}}
			default:
				return nil
			}
		})},
	}
}

func reportColumns() []table.Column {
	return []table.Column{
		{Key: "date", Label: "Date", Sortable: true},
		{Key: "doctor_name", Label: "Doctor", Sortable: true},
		{Key: "diagnosis", Label: "Diagnosis"},
		{Key: "actions", Label: "Actions", Actions: table.StaticActions(table.Action{
			Name:    "download",
			Label:   table.Static("Download PDF"),
			Variant: table.Static("secondary"),
			Icon:    "download",
		})},
	}
}

func paymentColumns() []table.Column {
	return []table.Column{
		{Key: "date", Label: "Date", Sortable: true},
		{Key: "description", Label: "Description"},
		{Key: "amount", Label: "Amount", Sortable: true, Render: renderAmount},
		{Key: "status", Label: "Status", Sortable: true, Render: renderStatus},
		{Key: "actions", Label: "Actions", Actions: table.ComputedActions(func(row model.Record) []table.Action {
			status, _ := row["status"].(string)
			if strings.EqualFold(status, "unpaid") {
				return []table.Action{{
					Name:    "pay",
					Label:   table.Static("Pay Now"),
					Variant: table.Static("primary"),
				}}
			}
			return nil
		})},
	}
}

// renderStatus はステータス値を表示用に先頭大文字へ整形する。
// 先頭がマルチバイト文字の場合もルーン単位で処理する。
func renderStatus(value any, _ model.Record) string {
	s, ok := value.(string)
	if !ok || s == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}

// renderAmount は金額を通貨付き表記に整形する。
func renderAmount(value any, _ model.Record) string {
	if n, ok := value.(float64); ok {
		return fmt.Sprintf("KES %.2f", n)
	}
	if s, ok := value.(string); ok && s != "" {
		return "KES " + s
	}
	return ""
}

// Appointments は患者自身の予約一覧をテーブルビューで返す。
// GET /api/patient/appointments
func (h *PatientHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	h.listView(w, r, "/patient/appointments", appointmentColumns(), false, "No appointments yet")
}

// bookAppointmentRequest は診察予約リクエストのボディ。
type bookAppointmentRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Reason   string `json:"reason"`
}

// BookAppointment は診察を予約する。
// POST /api/patient/appointments
func (h *PatientHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	var req bookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}

	fields := make(map[string]string)
	if req.DoctorID == "" {
		fields["doctor_id"] = "医師を選択してください。"
	}
	if req.Date == "" {
		fields["date"] = "希望日を入力してください。"
	}
	if req.Time == "" {
		fields["time"] = "希望時刻を入力してください。"
	}
	if len(fields) > 0 {
		writeValidationFields(w, fields)
		return
	}

	body := map[string]string{
		"doctor_id": req.DoctorID,
		"date":      req.Date,
		"time":      req.Time,
		"reason":    h.sanitizer.SanitizeText(req.Reason),
	}
	var created model.Record
	if err := h.gateway.JSON(r.Context(), http.MethodPost, "/patient/appointments", session.Token, body, &created); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "appointment": created})
}

// CancelAppointment は予約を取り消す。
// POST /api/patient/appointments/{id}/cancel
func (h *PatientHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("予約IDが指定されていません。"))
		return
	}

	path := fmt.Sprintf("/patient/appointments/%s/cancel", id)
	if err := h.gateway.JSON(r.Context(), http.MethodPost, path, session.Token, nil, nil); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Reports は患者自身の診断報告書一覧をテーブルビューで返す。
// GET /api/patient/reports
func (h *PatientHandler) Reports(w http.ResponseWriter, r *http.Request) {
	h.listView(w, r, "/patient/reports", reportColumns(), false, "No medical reports yet")
}

// DownloadReport は報告書のPDFをバックエンドから中継する。
// GET /api/patient/reports/{id}/download
// 応答ボディはバッファせずそのままストリームする。
func (h *PatientHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("報告書IDが指定されていません。"))
		return
	}

	resp, err := h.gateway.Raw(r.Context(), fmt.Sprintf("/patient/reports/%s/pdf", id), session.Token)
	if err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "report-"+id+".pdf"))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to stream report pdf",
			slog.String("report_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// Payments は患者自身の支払い一覧をテーブルビューで返す。
// GET /api/patient/payments
func (h *PatientHandler) Payments(w http.ResponseWriter, r *http.Request) {
	h.listView(w, r, "/patient/payments", paymentColumns(), false, "No payments yet")
}

// payCardRequest はカード決済リクエストのボディ。
type payCardRequest struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

// PayCard は支払いをカードで決済する。
// POST /api/patient/payments/{id}/card
// カード情報は保存せずバックエンドへそのまま引き渡す。
func (h *PatientHandler) PayCard(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	var req payCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}

	fields := make(map[string]string)
	if digits := strings.ReplaceAll(req.CardNumber, " ", ""); len(digits) < 13 || len(digits) > 19 {
		fields["card_number"] = "カード番号の形式が正しくありません。"
	}
	if req.Expiry == "" {
		fields["expiry"] = "有効期限を入力してください。"
	}
	if l := len(req.CVV); l < 3 || l > 4 {
		fields["cvv"] = "セキュリティコードの形式が正しくありません。"
	}
	if len(fields) > 0 {
		writeValidationFields(w, fields)
		return
	}

	path := fmt.Sprintf("/patient/payments/%s/card", id)
	body := map[string]string{"card_number": req.CardNumber, "expiry": req.Expiry, "cvv": req.CVV}
	var result model.Record
	if err := h.gateway.JSON(r.Context(), http.MethodPost, path, session.Token, body, &result); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payment": result})
}

// payMpesaRequest はM-Pesa STKプッシュ決済リクエストのボディ。
type payMpesaRequest struct {
	Phone string `json:"phone"`
}

// PayMpesa は支払いをM-Pesa STKプッシュで決済する。
// POST /api/patient/payments/{id}/mpesa
func (h *PatientHandler) PayMpesa(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	var req payMpesaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}

	phone := normalizePhone(req.Phone)
	if !mpesaPhonePattern.MatchString(phone) {
		writeValidationFields(w, map[string]string{
			"phone": "電話番号は07XXXXXXXXまたは2547XXXXXXXXの形式で入力してください。",
		})
		return
	}

	path := fmt.Sprintf("/patient/payments/%s/mpesa", id)
	var result model.Record
	if err := h.gateway.JSON(r.Context(), http.MethodPost, path, session.Token, map[string]string{"phone": phone}, &result); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payment": result})
}

// normalizePhone は電話番号から空白・ハイフン・+を除去する。
func normalizePhone(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '+':
			return -1
		}
		return r
	}, raw)
}

// fileComplaintRequest は苦情送信リクエストのボディ。
type fileComplaintRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// FileComplaint は苦情を送信する。
// POST /api/patient/complaints
// 自由記述はマークアップを除去してから転送する。
func (h *PatientHandler) FileComplaint(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	var req fileComplaintRequest
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
	if err := h.gateway.JSON(r.Context(), http.MethodPost, "/patient/complaints", session.Token, body, nil); err != nil {
		handleBackendError(w, r, h.invalidator, h.cookieConfig, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

// News は保健ニュースの最新記事を返す。
// GET /api/patient/news
// バックエンドではなくポータル自身のキャッシュ（news_items）から提供する。
func (h *PatientHandler) News(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentSession(w, r); !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	items, err := h.news.ListNews(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// writeValidationFields はフィールド単位の検証エラーを応答する。
func writeValidationFields(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, validationErrorResponse{
		Code:     model.ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各項目のエラーを確認してください。",
		Fields:   fields,
	})
}
