package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultBaseURL is the job board every seed points at.
const DefaultBaseURL = "https://www.indeed.com"

// DefaultOutputSuffix is appended to the sanitized job title to name the artifact.
const DefaultOutputSuffix = "_USA.json"

// queryPunctuation matches a run of separator characters plus any trailing spaces.
var queryPunctuation = regexp.MustCompile(`[,.;@#?!&$ *]+ *`)

// SanitizeTerm trims text and collapses every run of query punctuation into repl.
func SanitizeTerm(text, repl string) string {
	return queryPunctuation.ReplaceAllLiteralString(strings.TrimSpace(text), repl)
}

// BuildSearchURL turns a free-text job title and location into a search URL.
// Characters outside the handled punctuation set pass through verbatim.
func BuildSearchURL(baseURL, jobTitle, location string) string {
	return baseURL + "/jobs?q=" + SanitizeTerm(jobTitle, "+") + "&l=" + SanitizeTerm(location, "+")
}

// OutputFilename names the result artifact after the job title.
func OutputFilename(jobTitle, suffix string) string {
	if suffix == "" {
		suffix = DefaultOutputSuffix
	}
	return SanitizeTerm(jobTitle, "_") + suffix
}

// Seeds builds one search seed per state code.
func Seeds(baseURL, jobTitle string, states []string) []SearchSeed {
	seeds := make([]SearchSeed, 0, len(states))
	for _, state := range states {
		seeds = append(seeds, SearchSeed{
			JobTitle:  jobTitle,
			StateCode: state,
			URL:       BuildSearchURL(baseURL, jobTitle, state),
		})
	}
	return seeds
}

// ResolveURL resolves href against base, returning an absolute URL string.
func ResolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
