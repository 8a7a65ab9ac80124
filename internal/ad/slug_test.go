package ad

import (
	"regexp"
	"strings"
	"testing"
)

func TestNewSlugShape(t *testing.T) {
	slug := newSlug(PropertyHouse, ActionSale, "22 Station St, Newtown NSW 2042", "950000")

	if !strings.HasPrefix(slug, "house-for-sale-address-22-station-st-newtown-nsw-2042-at-price-950000-") {
		t.Errorf("unexpected slug prefix: %q", slug)
	}
	if ok, _ := regexp.MatchString(`^[a-z0-9]+(-[a-z0-9]+)*$`, slug); !ok {
		t.Errorf("slug is not hyphenated lowercase alphanumerics: %q", slug)
	}
}

func TestNewSlugIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		slug := newSlug(PropertyApartment, ActionRent, "1 Main St", "500")
		if seen[slug] {
			t.Fatalf("duplicate slug after %d generations: %q", i, slug)
		}
		seen[slug] = true
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"  22 Station St, Newtown  ", "22-station-st-newtown"},
		{"Unit 4/12 O'Brien Rd", "unit-4-12-o-brien-rd"},
		{"---", ""},
		{"ALLCAPS", "allcaps"},
	}
	for _, tc := range tests {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
