package utils

import "strings"

// RenderTemplate replaces {key} placeholders with values from params.
// Unknown placeholders are left untouched.
func RenderTemplate(text string, params map[string]string) string {
	if text == "" || len(params) == 0 {
		return text
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
