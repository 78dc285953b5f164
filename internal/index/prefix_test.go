package index

import (
	"reflect"
	"testing"
)

func TestPrefixExactLookup(t *testing.T) {
	idx := NewPrefixIndex()
	idx.Insert("ruby", "bp-1")
	idx.Insert("rubyist", "bp-2")
	idx.Insert("python", "bp-3")

	if got := idx.Lookup("ruby"); !reflect.DeepEqual(got, []string{"bp-1"}) {
		t.Errorf("Lookup(ruby) = %v, want [bp-1]", got)
	}
	if got := idx.Lookup("rub"); got != nil {
		t.Errorf("Lookup(rub) = %v, want nil (no exact term)", got)
	}
}

func TestPrefixWithPrefix(t *testing.T) {
	idx := NewPrefixIndex()
	idx.Insert("ruby", "bp-1")
	idx.Insert("rubyist", "bp-2")
	idx.Insert("rust", "bp-3")

	tests := []struct {
		prefix string
		want   []string
	}{
		{"ruby", []string{"bp-1", "bp-2"}},
		{"ru", []string{"bp-1", "bp-2", "bp-3"}},
		{"rubyist", []string{"bp-2"}},
		{"go", nil},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := idx.WithPrefix(tt.prefix); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("WithPrefix(%s) = %v, want %v", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestPrefixCaseInsensitive(t *testing.T) {
	idx := NewPrefixIndex()
	idx.Insert("Ruby", "bp-1")

	if got := idx.Lookup("ruby"); !reflect.DeepEqual(got, []string{"bp-1"}) {
		t.Errorf("Lookup(ruby) = %v, want [bp-1]", got)
	}
}

func TestPrefixMultipleIDsPerTerm(t *testing.T) {
	idx := NewPrefixIndex()
	idx.Insert("cache", "bp-2")
	idx.Insert("cache", "bp-1")
	idx.Insert("cache", "bp-1") // duplicate insert is idempotent

	if got := idx.Lookup("cache"); !reflect.DeepEqual(got, []string{"bp-1", "bp-2"}) {
		t.Errorf("Lookup(cache) = %v, want [bp-1 bp-2]", got)
	}
	if idx.Terms() != 1 {
		t.Errorf("Terms() = %d, want 1", idx.Terms())
	}
}

func TestPrefixIgnoresEmpty(t *testing.T) {
	idx := NewPrefixIndex()
	idx.Insert("", "bp-1")
	idx.Insert("  ", "bp-1")
	if idx.Terms() != 0 {
		t.Errorf("Terms() = %d, want 0", idx.Terms())
	}
}

func TestPrefixClear(t *testing.T) {
	idx := NewPrefixIndex()
	idx.Insert("term", "bp-1")
	idx.Clear()

	if idx.Terms() != 0 {
		t.Errorf("Terms() = %d after Clear, want 0", idx.Terms())
	}
	if got := idx.Lookup("term"); got != nil {
		t.Errorf("Lookup after Clear = %v, want nil", got)
	}
}
