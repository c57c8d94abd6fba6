// Package cookie implements the gateway's Cookie Extractor: a split of the
// request's Cookie headers into name/value pairs.
package cookie

import (
	"net/http"
	"strings"

	"github.com/streamspace/authgateway/internal/apperr"
)

// Pair is a single cookie name/value segment.
type Pair struct {
	Name  string
	Value string
}

// Pairs splits every Cookie header on the request into name/value pairs,
// trimming leading whitespace from each segment the way a literal
// "; "-joined header requires.
func Pairs(r *http.Request) []Pair {
	var pairs []Pair
	for _, header := range r.Header.Values("Cookie") {
		for _, segment := range strings.Split(header, ";") {
			segment = strings.TrimLeft(segment, " ")
			if segment == "" {
				continue
			}
			name, value, found := strings.Cut(segment, "=")
			if !found {
				continue
			}
			pairs = append(pairs, Pair{Name: name, Value: value})
		}
	}
	return pairs
}

// Get returns the value of the first cookie matching name, or
// apperr.CookieNotFound if none is present.
func Get(r *http.Request, name string) (string, error) {
	for _, p := range Pairs(r) {
		if p.Name == name {
			return p.Value, nil
		}
	}
	return "", apperr.CookieNotFound(name)
}
