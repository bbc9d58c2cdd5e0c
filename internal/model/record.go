package model

import "strconv"

// Record はバックエンドから取得した1行分のレコードを表す。
// ポータルはバックエンドのリソース（予約・支払い・報告書等）にスキーマを課さず、
// 「識別子フィールドを持つレコードの集合」としてのみ扱う。
type Record map[string]any

// Identifier はレコードの安定識別子を返す。
// 慣例的な2つのフィールド名（"id"、"_id"）を順に探し、
// どちらも無い場合は位置インデックスにフォールバックする。
// フォールバック時は集合が並び替わると識別子が安定しないため、
// 選択機能を使う呼び出し元は安定した識別子フィールドを持つデータを渡すこと。
func (r Record) Identifier(index int) string {
	for _, key := range []string{"id", "_id"} {
		switch v := r[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			// JSON数値はfloat64でデコードされる
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return strconv.Itoa(index)
}
