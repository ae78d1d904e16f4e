package greeting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		country    string
		background string
		want       string
	}{
		{"religion beats country", "France", "Muslim", Arabic},
		{"islam any case", "Pakistan", "ISLAM", Arabic},
		{"hindu background", "Nepal", "Hindu", Hindi},
		{"india country", "India", "none", Hindi},
		{"pakistan", "Pakistan", "Christian", Urdu},
		{"bangladesh", "Bangladesh", "", Urdu},
		{"china substring", "People's Republic of China", "", Chinese},
		{"japan", "Japan", "Shinto", Japanese},
		{"south korea", "South Korea", "", Korean},
		{"mexico", "Mexico", "Catholic", Spanish},
		{"france", "france", "atheist", French},
		{"germany", "Germany", "", German},
		{"italy", "Italy", "", Italian},
		{"brazil", "Brazil", "", Portuguese},
		{"russia", "Russia", "Orthodox", Russian},
		{"fallback", "Canada", "Buddhist", Default},
		{"empty", "", "", Default},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.country, tt.background))
		})
	}
}

func TestResolveIsStable(t *testing.T) {
	first := Resolve("Germany", "Lutheran")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Resolve("Germany", "Lutheran"))
	}
}
