package utils

import (
	"fmt"
	"strings"

	ua "github.com/mileusna/useragent"
)

// ParseUserAgent extracts browser, OS and device class from a User-Agent.
func ParseUserAgent(userAgent string) (browser, os, device string) {
	if userAgent == "" {
		return "Navegador desconocido", "SO desconocido", "Escritorio"
	}

	parsedUA := ua.Parse(userAgent)

	browser = "Navegador desconocido"
	if parsedUA.Name != "" {
		browser = parsedUA.Name
	}

	os = "SO desconocido"
	if parsedUA.OS != "" {
		os = parsedUA.OS
	}

	device = "Escritorio"
	if parsedUA.Mobile {
		device = "Móvil"
		if strings.Contains(userAgent, "iPhone") {
			device = "iPhone"
		}
	} else if parsedUA.Tablet {
		device = "Tablet"
	}

	return strings.TrimSpace(browser), strings.TrimSpace(os), device
}

// DeviceInfo is the label stored with a session, e.g. "Chrome en Android (Móvil)".
func DeviceInfo(userAgent string) string {
	browser, os, device := ParseUserAgent(userAgent)
	return fmt.Sprintf("%s en %s (%s)", browser, os, device)
}
