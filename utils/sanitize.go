package utils

import "github.com/microcosm-cc/bluemonday"

var (
	bodyPolicy  = bluemonday.UGCPolicy()
	titlePolicy = bluemonday.StrictPolicy()
)

// Sanitize cleans post body HTML to prevent XSS while keeping user markup.
func Sanitize(input string) string {
	return bodyPolicy.Sanitize(input)
}

// SanitizeTitle strips all markup; titles are plain text.
func SanitizeTitle(input string) string {
	return titlePolicy.Sanitize(input)
}
