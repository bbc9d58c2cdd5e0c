package table

import "github.com/stmercy/portal/internal/model"

// 選択状態の所有権は呼び出し元にある。tableパッケージは選択を保持せず、
// ヘッダーチェックボックスと行チェックボックスに対応する純粋な遷移関数のみを提供する。
// データ差し替え後はPruneSelectionで新しい集合と整合させるのが呼び出し元の責務。

// VisibleIdentifiers は現在ページに表示される行の識別子を返す。
// ヘッダーチェックボックスの対象は常に「現在ページのみ」であり、
// フィルタ済み全件ではない。
func VisibleIdentifiers(in Input, st State) []string {
	if len(in.Rows) == 0 {
		return nil
	}

	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	sorted := sortRows(in.Rows, st)
	page := clampPage(st.Page, TotalPages(len(sorted), pageSize))

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(sorted) {
		end = len(sorted)
	}

	ids := make([]string, 0, end-start)
	for i, record := range sorted[start:end] {
		ids = append(ids, record.Identifier(start+i))
	}
	return ids
}

// ToggleSelectAll はヘッダーチェックボックスの操作に対応する選択遷移を返す。
// 現在ページの全識別子が選択済みの場合: ちょうどそれらだけを選択から外す。
// それ以外の場合: 現在ページの識別子を選択に加える（他ページの選択は維持）。
func ToggleSelectAll(selected, pageIDs []string) []string {
	selectedSet := make(map[string]bool, len(selected))
	for _, id := range selected {
		selectedSet[id] = true
	}

	allSelected := len(pageIDs) > 0
	for _, id := range pageIDs {
		if !selectedSet[id] {
			allSelected = false
			break
		}
	}

	if allSelected {
		pageSet := make(map[string]bool, len(pageIDs))
		for _, id := range pageIDs {
			pageSet[id] = true
		}
		out := make([]string, 0, len(selected))
		for _, id := range selected {
			if !pageSet[id] {
				out = append(out, id)
			}
		}
		return out
	}

	out := make([]string, 0, len(selected)+len(pageIDs))
	out = append(out, selected...)
	for _, id := range pageIDs {
		if !selectedSet[id] {
			out = append(out, id)
		}
	}
	return out
}

// ToggleSelect は行チェックボックスの操作に対応する選択遷移を返す。
func ToggleSelect(selected []string, id string) []string {
	out := make([]string, 0, len(selected)+1)
	found := false
	for _, s := range selected {
		if s == id {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

// PruneSelection は新しいレコード集合に存在しない識別子を選択から取り除く。
// データ再取得後に呼び出し元が選択を整合させるためのヘルパー。
func PruneSelection(selected []string, rows []model.Record) []string {
	existing := make(map[string]bool, len(rows))
	for i, record := range rows {
		existing[record.Identifier(i)] = true
	}

	out := make([]string, 0, len(selected))
	for _, id := range selected {
		if existing[id] {
			out = append(out, id)
		}
	}
	return out
}
