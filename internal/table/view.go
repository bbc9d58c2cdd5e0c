package table

import (
	"fmt"
	"sort"

	"github.com/stmercy/portal/internal/model"
)

// DefaultPageSize は呼び出し元がページサイズを指定しない場合の1ページあたりの行数。
const DefaultPageSize = 10

// defaultEmptyMessage は空メッセージ未指定時の表示文言。
const defaultEmptyMessage = "No data available"

// Input はテーブルビュー構築への入力。
// RowsおよびColumnsは呼び出し元の所有物であり、tableパッケージは変更しない。
// Selectedは呼び出し元が所有する選択済み識別子のリスト。選択の真実は常に
// 呼び出し元側にあり、データ差し替え後の整合（PruneSelection）も呼び出し元の責務。
type Input struct {
	Columns      []Column
	Rows         []model.Record
	PageSize     int
	Loading      bool
	Selectable   bool
	Selected     []string
	EmptyMessage string
}

// HeaderCell はヘッダー1列分の表示状態。
type HeaderCell struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Sortable bool      `json:"sortable"`
	Sorted   bool      `json:"sorted"`
	Dir      Direction `json:"dir,omitempty"`
}

// Cell はボディ1セル分の表示値。
type Cell struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ActionView は解決済みの行アクション。
type ActionView struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Variant string `json:"variant"`
	Icon    string `json:"icon,omitempty"`
}

// Row は表示対象の1行。
type Row struct {
	ID       string       `json:"id"`
	Selected bool         `json:"selected"`
	Cells    []Cell       `json:"cells"`
	Actions  []ActionView `json:"actions,omitempty"`
}

// Pagination はページネーションの表示状態。
// Pagesは全ページ番号の列挙であり、大きなページ数では省略表示しない
// （想定データ量では許容されるが、スケール上の制約として既知）。
type Pagination struct {
	Page       int   `json:"page"`
	TotalPages int   `json:"total_pages"`
	TotalRows  int   `json:"total_rows"`
	PageSize   int   `json:"page_size"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
	Pages      []int `json:"pages"`
}

// View は構築済みのテーブルビュー。JSONとしてそのままUIに返せる。
type View struct {
	Loading      bool         `json:"loading"`
	Empty        bool         `json:"empty"`
	EmptyMessage string       `json:"empty_message,omitempty"`
	Selectable   bool         `json:"selectable"`
	AllSelected  bool         `json:"all_selected"`
	HasActions   bool         `json:"has_actions"`
	Header       []HeaderCell `json:"header"`
	Rows         []Row        `json:"rows"`
	Pagination   Pagination   `json:"pagination"`
}

// Compute は入力と状態からテーブルビューを構築する。
// 表示行は常に sort(data, state) を [(page-1)*size, page*size) で切り出したもの。
// Loading中はデータを無視してプレースホルダのみを返し、
// 空集合の場合は空メッセージのみを返す。
func Compute(in Input, st State) View {
	if in.Loading {
		return View{Loading: true}
	}

	if len(in.Rows) == 0 {
		msg := in.EmptyMessage
		if msg == "" {
			msg = defaultEmptyMessage
		}
		return View{Empty: true, EmptyMessage: msg}
	}

	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	sorted := sortRows(in.Rows, st)

	totalPages := TotalPages(len(sorted), pageSize)
	page := clampPage(st.Page, totalPages)

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(sorted) {
		end = len(sorted)
	}
	visible := sorted[start:end]

	actionsCol := findActionsColumn(in.Columns)

	view := View{
		Selectable: in.Selectable,
		HasActions: actionsCol != nil,
		Header:     buildHeader(in.Columns, st),
		Rows:       make([]Row, 0, len(visible)),
		Pagination: buildPagination(page, totalPages, len(sorted), pageSize),
	}

	selected := make(map[string]bool, len(in.Selected))
	for _, id := range in.Selected {
		selected[id] = true
	}

	allSelected := len(visible) > 0
	for i, record := range visible {
		id := record.Identifier(start + i)
		isSelected := selected[id]
		if !isSelected {
			allSelected = false
		}

		row := Row{
			ID:       id,
			Selected: isSelected,
			Cells:    make([]Cell, 0, len(in.Columns)),
		}
		for _, col := range in.Columns {
			row.Cells = append(row.Cells, Cell{Key: col.Key, Value: col.renderValue(record)})
		}
		if actionsCol != nil {
			row.Actions = resolveActions(*actionsCol, record)
		}
		view.Rows = append(view.Rows, row)
	}

	if in.Selectable {
		view.AllSelected = allSelected
	}

	return view
}

// TotalPages は総行数とページサイズから総ページ数を返す。
func TotalPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// sortRows はソート状態に従い、元の集合を変更せずにソート済みコピーを返す。
// SortKeyが空の場合は元の並び順のコピーを返す。
func sortRows(rows []model.Record, st State) []model.Record {
	out := make([]model.Record, len(rows))
	copy(out, rows)

	if st.SortKey == "" {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		cmp := compareValues(out[i][st.SortKey], out[j][st.SortKey])
		if st.SortDir == Descending {
			return cmp > 0
		}
		return cmp < 0
	})

	return out
}

// compareValues はフィールド値を素の順序で比較する。
// 双方が数値なら数値比較、それ以外は文字列表現の辞書順比較を行う。
// ロケール対応の照合や型強制は行わない。
func compareValues(a, b any) int {
	af, aok := asNumber(a)
	bf, bok := asNumber(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	as := asString(a)
	bs := asString(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// buildHeader はヘッダー行の表示状態を構築する。
func buildHeader(columns []Column, st State) []HeaderCell {
	header := make([]HeaderCell, 0, len(columns))
	for _, col := range columns {
		cell := HeaderCell{
			Key:      col.Key,
			Label:    col.Label,
			Sortable: col.Sortable,
		}
		if st.SortKey == col.Key && st.SortKey != "" {
			cell.Sorted = true
			cell.Dir = st.SortDir
		}
		header = append(header, cell)
	}
	return header
}

// buildPagination はページネーションの表示状態を構築する。
func buildPagination(page, totalPages, totalRows, pageSize int) Pagination {
	pages := make([]int, 0, totalPages)
	for i := 1; i <= totalPages; i++ {
		pages = append(pages, i)
	}
	return Pagination{
		Page:       page,
		TotalPages: totalPages,
		TotalRows:  totalRows,
		PageSize:   pageSize,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
		Pages:      pages,
	}
}

// findActionsColumn はアクションを宣言した最初の列を返す。見つからなければnil。
func findActionsColumn(columns []Column) *Column {
	for i := range columns {
		if columns[i].Actions.Declared() {
			return &columns[i]
		}
	}
	return nil
}

// resolveActions は列のアクション宣言を行に対し1回だけ解決する。
// バリアント未指定のアクションは "primary" として扱う。
func resolveActions(col Column, record model.Record) []ActionView {
	resolved := col.Actions.Resolve(record)
	if len(resolved) == 0 {
		return nil
	}
	views := make([]ActionView, 0, len(resolved))
	for _, action := range resolved {
		variant := action.Variant.Resolve(record)
		if variant == "" {
			variant = "primary"
		}
		views = append(views, ActionView{
			Name:    action.Name,
			Label:   action.Label.Resolve(record),
			Variant: variant,
			Icon:    action.Icon,
		})
	}
	return views
}
