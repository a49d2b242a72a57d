// Package outputcheck screens generated responses for credential and
// contact-data leakage before they reach the user.
package outputcheck

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/estctiger/estctiger/models"
)

// sensitivePatterns match against the lowercased response; the raw text is
// scanned separately for bare IPv4 addresses.
var sensitivePatterns = compileAll(
	`password\s*[:=]\s*['"]?[^'"\s]+`,
	`api[_-]?key\s*[:=]\s*['"]?[^'"\s]+`,
	`secret\s*[:=]\s*['"]?[^'"\s]+`,
	`token\s*[:=]\s*['"]?[^'"\s]+`,
	`private[_-]?key`,
	`ssh[_-]?key`,
	`credit[_-]?card`,
	`ssn\s*[:=]\s*\d{3}-\d{2}-\d{4}`,
	`email\s*[:=]\s*[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
	`phone\s*[:=]\s*\+?1?[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`,
)

var ipv4Pattern = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Gate is the final screen on generated responses.
type Gate struct {
	logger *zap.Logger
}

func NewGate(logger *zap.Logger) *Gate {
	return &Gate{logger: logger}
}

// Evaluate approves a response unless it leaks something that looks like a
// credential, contact detail, or internal address.
func (g *Gate) Evaluate(response string) models.OutputVerdict {
	responseLower := strings.ToLower(response)

	for _, p := range sensitivePatterns {
		if p.MatchString(responseLower) {
			g.logger.Warn("response blocked by output screen", zap.String("pattern", p.String()))
			return models.OutputVerdict{
				Approved: false,
				Feedback: fmt.Sprintf("Response contains sensitive data: Potential sensitive data pattern detected: %s", p.String()),
				Category: "security",
			}
		}
	}

	if ipv4Pattern.MatchString(response) {
		g.logger.Warn("response blocked by output screen", zap.String("pattern", "ipv4"))
		return models.OutputVerdict{
			Approved: false,
			Feedback: "Response contains sensitive data: Response contains IP addresses that may be sensitive",
			Category: "security",
		}
	}

	return models.OutputVerdict{
		Approved: true,
		Feedback: "Response meets all quality and safety standards",
		Category: "approved",
	}
}
