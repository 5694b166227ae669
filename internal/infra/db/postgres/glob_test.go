//go:build !integration

package postgres

import "testing"

func TestGlobToLike(t *testing.T) {
	tests := []struct{ in, want string }{
		{"chat:*", "chat:%"},
		{"chat:?", "chat:_"},
		{"a_b%*", `a\_b\%%`},
		{`x\y`, `x\\y`},
	}
	for _, tt := range tests {
		if got := globToLike(tt.in); got != tt.want {
			t.Errorf("globToLike(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}
