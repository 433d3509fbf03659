package ledger

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// DescribeClient renders a short "Browser on OS" descriptor from a raw
// User-Agent header. Ledger events carry it so an audit reader can tell which
// client performed an action without storing the full header.
func DescribeClient(raw string) string {
	if raw == "" {
		return "Unknown Device"
	}

	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		name = "Unknown Browser"
	} else if version != "" {
		// Major version only; minor churn is noise in an audit trail.
		if idx := strings.Index(version, "."); idx > 0 {
			version = version[:idx]
		}
		name = name + " " + version
	}

	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(fmt.Sprintf("%s on %s", name, os))
}
