package filter

import "testing"

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		path   string
		want   bool
	}{
		{"empty prefix matches all", "", "Account/Inbox", true},
		{"empty prefix matches empty", "", "", true},
		{"exact match", "Account/Inbox", "Account/Inbox", true},
		{"prefix match", "Account", "Account/Inbox", true},
		{"no match", "Account/Archive", "Account/Inbox", false},
		{"case sensitive", "account", "Account/Inbox", false},
		{"prefix longer than path", "Account/Inbox/Sub", "Account/Inbox", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.prefix).Matches(tt.path); got != tt.want {
				t.Errorf("New(%q).Matches(%q) = %v, want %v", tt.prefix, tt.path, got, tt.want)
			}
		})
	}
}
