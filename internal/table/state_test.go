package table

import "testing"

func TestNewState(t *testing.T) {
	st := NewState()
	if st.Page != 1 {
		t.Errorf("Page = %d, want 1", st.Page)
	}
	if st.SortKey != "" {
		t.Errorf("SortKey = %q, want unsorted", st.SortKey)
	}
	if st.SortDir != Ascending {
		t.Errorf("SortDir = %q, want %q", st.SortDir, Ascending)
	}
}

func TestState_Toggle(t *testing.T) {
	tests := []struct {
		name    string
		start   State
		key     string
		wantKey string
		wantDir Direction
	}{
		{"unsorted to asc", State{Page: 1}, "name", "name", Ascending},
		{"asc to desc", State{Page: 1, SortKey: "name", SortDir: Ascending}, "name", "name", Descending},
		{"desc back to asc", State{Page: 1, SortKey: "name", SortDir: Descending}, "name", "name", Ascending},
		{"other column resets to asc", State{Page: 2, SortKey: "name", SortDir: Descending}, "date", "date", Ascending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start.Toggle(tt.key)
			if got.SortKey != tt.wantKey {
				t.Errorf("SortKey = %q, want %q", got.SortKey, tt.wantKey)
			}
			if got.SortDir != tt.wantDir {
				t.Errorf("SortDir = %q, want %q", got.SortDir, tt.wantDir)
			}
			if got.Page != tt.start.Page {
				t.Errorf("Page = %d, want unchanged %d", got.Page, tt.start.Page)
			}
		})
	}
}

func TestState_ChangePage(t *testing.T) {
	st := State{Page: 2}

	if got := st.ChangePage(3, 5); got.Page != 3 {
		t.Errorf("ChangePage(3, 5).Page = %d, want 3", got.Page)
	}
	// 範囲外への遷移はno-op
	if got := st.ChangePage(0, 5); got.Page != 2 {
		t.Errorf("ChangePage(0, 5).Page = %d, want 2 (no-op)", got.Page)
	}
	if got := st.ChangePage(6, 5); got.Page != 2 {
		t.Errorf("ChangePage(6, 5).Page = %d, want 2 (no-op)", got.Page)
	}
}

func TestParseDirection(t *testing.T) {
	if ParseDirection("desc") != Descending {
		t.Error("ParseDirection(desc) should be Descending")
	}
	if ParseDirection("asc") != Ascending {
		t.Error("ParseDirection(asc) should be Ascending")
	}
	if ParseDirection("sideways") != Ascending {
		t.Error("unknown direction should default to Ascending")
	}
}
