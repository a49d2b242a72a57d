package generator

import (
	"regexp"
	"strings"
)

var sectionHeaders = []string{
	"Key Metrics:",
	"Investment Perspective:",
	"For RSU holders:",
	"Key ESTC Metrics:",
	"Current Performance:",
	"Outlook:",
	"Recommendation:",
	"Summary:",
	"Analysis:",
}

var multiBreak = regexp.MustCompile(`\n{3,}`)

// FormatResponse reshapes model output for chat display: inline bullets get
// their own lines, known section headers and follow-up questions get blank
// lines before them, and runs of blank lines collapse. Running it on its
// own output changes nothing.
func FormatResponse(response string) string {
	formatted := strings.ReplaceAll(response, " - ", "\n- ")

	for _, header := range sectionHeaders {
		formatted = strings.ReplaceAll(formatted, header, "\n\n"+header)
	}

	formatted = strings.ReplaceAll(formatted, "Would you like", "\n\nWould you like")
	formatted = strings.ReplaceAll(formatted, "Do you need", "\n\nDo you need")

	formatted = multiBreak.ReplaceAllString(formatted, "\n\n")

	return strings.TrimSpace(formatted)
}
