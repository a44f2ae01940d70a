package dispatch

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// whatsAppTemplate is the fixed outbound greeting; %s is the lead name.
const whatsAppTemplate = "Hi %s, thanks for reaching out! How can we help you today?"

// displayName returns the NFC-normalised, trimmed lead name, or "there" when
// the lead has no name.
func displayName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return "there"
	}
	return name
}

// phoneDigits strips everything but ASCII digits from a phone number.
func phoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// encodeComponent percent-encodes s for a query value, spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// whatsAppMessage renders the greeting for a lead.
func whatsAppMessage(name string) string {
	return fmt.Sprintf(whatsAppTemplate, displayName(name))
}

// whatsAppLink builds the wa.me deep link carrying the greeting.
func whatsAppLink(phone, name string) string {
	return "https://wa.me/" + phoneDigits(phone) + "?text=" + encodeComponent(whatsAppMessage(name))
}
