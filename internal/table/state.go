package table

// Direction はソート方向を表す。
type Direction string

const (
	// Ascending は昇順ソート。
	Ascending Direction = "asc"
	// Descending は降順ソート。
	Descending Direction = "desc"
)

// ParseDirection は文字列をDirectionに変換する。不正値は昇順として扱う。
func ParseDirection(s string) Direction {
	if s == string(Descending) {
		return Descending
	}
	return Ascending
}

// State はテーブルの操作状態（ページ番号・ソートキー・ソート方向）を表す。
// ページ番号は1始まり。SortKeyが空の場合は未ソート（元の並び順を維持）。
type State struct {
	Page    int
	SortKey string
	SortDir Direction
}

// NewState は初期状態（1ページ目・未ソート・昇順）を返す。
func NewState() State {
	return State{Page: 1, SortDir: Ascending}
}

// Toggle はソート可能な列ヘッダーのクリックに対応する状態遷移を返す。
// 未ソートまたは別の列をクリック: その列の昇順に設定する。
// 昇順ソート中の列をクリック: 降順に反転する。
// 降順ソート中の列をクリック: 昇順に戻る（「未ソートに戻る」第3状態は存在しない）。
func (s State) Toggle(key string) State {
	dir := Ascending
	if s.SortKey == key && s.SortDir == Ascending {
		dir = Descending
	}
	return State{Page: s.Page, SortKey: key, SortDir: dir}
}

// ChangePage はページ遷移に対応する状態遷移を返す。
// [1, totalPages]の範囲外への遷移は何もしない（1ページ目でのprev、
// 最終ページでのnextはno-op）。
func (s State) ChangePage(page, totalPages int) State {
	if page < 1 || page > totalPages {
		return s
	}
	s.Page = page
	return s
}

// clampPage はページ番号を[1, totalPages]に収める。
// ページサイズや件数の変化で現在ページが総ページ数を超えた場合、
// 最後の有効ページ（データが無い場合は1ページ目）に切り詰める。
func clampPage(page, totalPages int) int {
	if totalPages < 1 {
		return 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
