package diff

import (
	"reflect"
	"testing"

	"github.com/catsync/catsync/catalog"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		current  catalog.Flat
		previous catalog.Flat
		want     []string
	}{
		{
			name:     "new key",
			current:  catalog.Flat{"en|a": "x", "en|b": "y"},
			previous: catalog.Flat{"en|a": "x"},
			want:     []string{"en|b"},
		},
		{
			name:     "changed value",
			current:  catalog.Flat{"en|a": "x2", "en|b": "y"},
			previous: catalog.Flat{"en|a": "x", "en|b": "y"},
			want:     []string{"en|a"},
		},
		{
			name:     "removed key not reported",
			current:  catalog.Flat{"en|a": "x"},
			previous: catalog.Flat{"en|a": "x", "en|gone": "z"},
			want:     []string{},
		},
		{
			name:     "identical catalogs",
			current:  catalog.Flat{"en|a": "x"},
			previous: catalog.Flat{"en|a": "x"},
			want:     []string{},
		},
		{
			name:     "empty previous means everything is new",
			current:  catalog.Flat{"en|a": "x", "en|b": "y"},
			previous: catalog.Flat{},
			want:     []string{"en|a", "en|b"},
		},
		{
			name:     "whitespace difference counts",
			current:  catalog.Flat{"en|a": "x "},
			previous: catalog.Flat{"en|a": "x"},
			want:     []string{"en|a"},
		},
		{
			name:     "empty to non-empty counts",
			current:  catalog.Flat{"en|a": "filled in"},
			previous: catalog.Flat{"en|a": ""},
			want:     []string{"en|a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.current, tt.previous).Paths()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Detect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectMembersComeFromCurrent(t *testing.T) {
	current := catalog.Flat{"en|a": "x", "en|b": "y2"}
	previous := catalog.Flat{"en|b": "y", "en|c": "z"}

	set := Detect(current, previous)
	for path := range set {
		if _, ok := current[path]; !ok {
			t.Errorf("changed path %q not present in current", path)
		}
	}
	if !set.Has("en|a") || !set.Has("en|b") {
		t.Errorf("Detect = %v, want en|a and en|b", set.Paths())
	}
	if set.Has("en|c") {
		t.Error("removed path en|c reported as changed")
	}
}
