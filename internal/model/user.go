// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Role はポータル利用者の役割を表す。
// 役割ごとに到達可能な画面が制限される。
type Role string

const (
	// RolePatient は患者ポータルの利用者。
	RolePatient Role = "patient"
	// RoleDoctor は医師ポータルの利用者。
	RoleDoctor Role = "doctor"
	// RoleAdmin は管理者ポータルの利用者。
	RoleAdmin Role = "admin"
)

// ParseRole は文字列をRoleに変換する。大文字小文字は区別しない。
// 未知の役割の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RolePatient):
		return RolePatient, true
	case string(RoleDoctor):
		return RoleDoctor, true
	case string(RoleAdmin):
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Equals は役割を大文字小文字を区別せずに比較する。
// バックエンドが返すroleフィールドの表記揺れ（"Doctor"等）を吸収する。
func (r Role) Equals(other Role) bool {
	return strings.EqualFold(string(r), string(other))
}

// HomePath は役割ごとのポータルトップのパスを返す。
// ログイン成功後のリダイレクト先の決定に使用する。
func (r Role) HomePath() string {
	switch {
	case r.Equals(RoleAdmin):
		return "/admin"
	case r.Equals(RoleDoctor):
		return "/doctor"
	case r.Equals(RolePatient):
		return "/patient"
	default:
		return "/"
	}
}

// Identity はバックエンドが認証したユーザーのプロフィールを表す。
// roleフィールドがポータルの到達可能画面を決定する。
type Identity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Active bool   `json:"active"`
}

// Session はポータルのログインセッションを表す。
// バックエンドのbearerトークン（Credential）と検証済みIdentityを対で保持する。
// 両方が揃っていない限り未認証として扱う（片方だけの状態は存在させない）。
type Session struct {
	ID        string
	Token     string
	Identity  Identity
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Authenticated はトークンとIdentityの両方が揃っているかを返す。
// 片方でも欠けたセッションは未認証であり、呼び出し元は破棄しなければならない。
func (s *Session) Authenticated() bool {
	if s == nil {
		return false
	}
	return s.Token != "" && s.Identity.ID != "" && s.Identity.Role != ""
}
