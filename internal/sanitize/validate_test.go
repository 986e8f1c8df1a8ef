package sanitize

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{name: "empty", key: "", wantErr: ErrEmptyPath},
		{name: "item key", key: "items/PROJ/stories/2026/10/15/abc.json"},
		{name: "context key", key: "contexts/ana/20261015120000.json"},
		{name: "absolute", key: "/etc/passwd", wantErr: ErrAbsolutePath},
		{name: "traversal at start", key: "../etc/passwd", wantErr: ErrPathTraversal},
		{name: "traversal in middle", key: "a/../../b", wantErr: ErrPathTraversal},
		{name: "traversal at end", key: "a/b/..", wantErr: ErrPathTraversal},
		{name: "empty segment", key: "a//b", wantErr: ErrInvalidKey},
		{name: "dot segment", key: "a/./b", wantErr: ErrInvalidKey},
		{name: "backslash", key: `a\..\b`, wantErr: ErrInvalidKey},
		{name: "dots inside a name are fine", key: "a/b..c.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateKey(%q) unexpected error = %v", tt.key, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateKey(%q) error = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePrefix(t *testing.T) {
	for _, p := range []string{"", "items/", "items/PROJ/stories/"} {
		if err := ValidatePrefix(p); err != nil {
			t.Errorf("ValidatePrefix(%q) unexpected error = %v", p, err)
		}
	}
	if err := ValidatePrefix("../"); !errors.Is(err, ErrPathTraversal) {
		t.Errorf("ValidatePrefix(../) error = %v, want %v", err, ErrPathTraversal)
	}
}

func TestWithin(t *testing.T) {
	root := t.TempDir()

	got, err := Within(root, "contexts/ana/1.json")
	if err != nil {
		t.Fatalf("Within() unexpected error = %v", err)
	}
	want := filepath.Join(root, "contexts", "ana", "1.json")
	if got != want {
		t.Errorf("Within() = %q, want %q", got, want)
	}

	if _, err := Within(root, "../outside.json"); !errors.Is(err, ErrPathTraversal) {
		t.Errorf("Within() error = %v, want %v", err, ErrPathTraversal)
	}
}
