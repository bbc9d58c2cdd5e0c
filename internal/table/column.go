// Package table は任意のレコード集合と列定義から、
// ソート・ページネーション・選択・行アクションを備えたテーブルビューを構築する。
// ネットワークアクセスや入力データの変更は一切行わない純粋な変換層であり、
// ソートとページネーションは元の集合から導出したビューに対してのみ作用する。
package table

import (
	"fmt"

	"github.com/stmercy/portal/internal/model"
)

// Text はアクションのラベルやバリアントに使う「静的値 or 行ごとの算出値」の
// タグ付きユニオン。実行時の型判定を避け、行ごとの解決を1回に限定する。
type Text struct {
	value string
	fn    func(model.Record) string
}

// Static は固定文字列のTextを生成する。
func Static(s string) Text {
	return Text{value: s}
}

// Computed は行から算出するTextを生成する。
func Computed(fn func(model.Record) string) Text {
	return Text{fn: fn}
}

// Resolve は行に対するTextの値を解決する。
func (t Text) Resolve(row model.Record) string {
	if t.fn != nil {
		return t.fn(row)
	}
	return t.value
}

// Action は1行に対する操作を表す。
// Nameはディスパッチ用の識別子で、クリック時に行レコードとともに通知される。
type Action struct {
	Name    string
	Label   Text
	Variant Text // 未指定時は "primary"
	Icon    string
}

// Actions は列が宣言するアクション集合。
// 静的リストか、行ごとにリストを算出する関数のどちらかを保持する。
type Actions struct {
	static []Action
	fn     func(model.Record) []Action
}

// StaticActions は固定のアクションリストを生成する。
func StaticActions(actions ...Action) Actions {
	return Actions{static: actions}
}

// ComputedActions は行ごとにアクションリストを算出するActionsを生成する。
func ComputedActions(fn func(model.Record) []Action) Actions {
	return Actions{fn: fn}
}

// Declared はこの列がアクションを宣言しているかを返す。
func (a Actions) Declared() bool {
	return a.fn != nil || len(a.static) > 0
}

// Resolve は行に対するアクションリストを解決する。
// 解決はレンダリングごとに行ごとに1回だけ行われる。
func (a Actions) Resolve(row model.Record) []Action {
	if a.fn != nil {
		return a.fn(row)
	}
	return a.static
}

// Renderer はセル値を表示文字列に変換する任意の変換関数。
type Renderer func(value any, row model.Record) string

// Column は1列分の表示・操作仕様を表す。
// 呼び出し元がレンダリングごとに渡すものであり、tableパッケージは変更しない。
type Column struct {
	Key      string
	Label    string
	Sortable bool
	Render   Renderer // nilの場合は素の値をそのまま表示
	Actions  Actions
}

// renderValue はセル値を表示文字列に変換する。
func (c Column) renderValue(row model.Record) string {
	value := row[c.Key]
	if c.Render != nil {
		return c.Render(value, row)
	}
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// JSON数値はfloat64でデコードされる。整数はそのまま整数表記にする
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
