package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/stmercy/portal/internal/table"
)

const (
	// pageSizePreferenceKey はユーザーごとの既定ページサイズの設定キー。
	pageSizePreferenceKey = "table_page_size"
	minPageSize           = 5
	maxPageSize           = 100
)

// tableStateFromQuery はクエリパラメータからテーブル状態を構築する。
// page/sort/dirを読み取る。不正なページ番号は1ページ目として扱う。
func tableStateFromQuery(r *http.Request) table.State {
	st := table.NewState()

	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page >= 1 {
			st.Page = page
		}
	}

	if sortKey := r.URL.Query().Get("sort"); sortKey != "" {
		st.SortKey = sortKey
		st.SortDir = table.ParseDirection(r.URL.Query().Get("dir"))
	}

	return st
}

// pageSizeFromQuery はクエリのsizeパラメータを読み取る。
// 未指定・不正時はfallbackを返し、指定時は範囲内に丸める。
func pageSizeFromQuery(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("size")
	if raw == "" {
		return fallback
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return clampPageSize(size)
}

func clampPageSize(size int) int {
	if size < minPageSize {
		return minPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}

// selectedFromQuery はクエリのselectedパラメータ（カンマ区切り）を
// 選択済み識別子のリストに変換する。選択の真実は呼び出し元（UI）側にあり、
// サーバーはレンダリングのたびに受け取った選択を反映するだけ。
func selectedFromQuery(r *http.Request) []string {
	raw := r.URL.Query().Get("selected")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	selected := make([]string, 0, len(parts))
	for _, p := range parts {
		if id := strings.TrimSpace(p); id != "" {
			selected = append(selected, id)
		}
	}
	return selected
}
