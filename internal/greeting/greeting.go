// Package greeting picks a localized hello from what the user says about
// their country and cultural background.
package greeting

import "strings"

// Greetings by language.
const (
	Arabic     = "السلام عليكم"
	Hindi      = "नमस्ते"
	Urdu       = "آداب"
	Bengali    = "নমস্কার" // no rule selects it yet
	Chinese    = "你好"
	Japanese   = "こんにちは"
	Korean     = "안녕하세요"
	Spanish    = "Hola"
	French     = "Bonjour"
	German     = "Hallo"
	Italian    = "Ciao"
	Portuguese = "Olá"
	Russian    = "Привет"
	Default    = "Hello"
)

type rule struct {
	background []string
	country    []string
	greeting   string
}

func (r rule) matches(country, background string) bool {
	for _, kw := range r.background {
		if strings.Contains(background, kw) {
			return true
		}
	}
	for _, kw := range r.country {
		if strings.Contains(country, kw) {
			return true
		}
	}
	return false
}

// Background rules come first; the first matching rule wins.
var rules = []rule{
	{background: []string{"islam", "muslim"}, greeting: Arabic},
	{background: []string{"hindu"}, country: []string{"india"}, greeting: Hindi},
	{country: []string{"pakistan", "bangladesh"}, greeting: Urdu},
	{country: []string{"china"}, greeting: Chinese},
	{country: []string{"japan"}, greeting: Japanese},
	{country: []string{"korea"}, greeting: Korean},
	{country: []string{"spain", "mexico"}, greeting: Spanish},
	{country: []string{"france"}, greeting: French},
	{country: []string{"germany"}, greeting: German},
	{country: []string{"italy"}, greeting: Italian},
	{country: []string{"brazil", "portugal"}, greeting: Portuguese},
	{country: []string{"russia"}, greeting: Russian},
}

// Resolve returns the greeting for the given country and cultural
// background. Matching is case-insensitive on substrings and never fails.
func Resolve(country, background string) string {
	c := strings.ToLower(country)
	b := strings.ToLower(background)
	for _, r := range rules {
		if r.matches(c, b) {
			return r.greeting
		}
	}
	return Default
}
