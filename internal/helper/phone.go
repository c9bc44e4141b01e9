package helper

import (
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// SanitizePhone strips a raw phone number down to its decimal digits.
// Separators, whitespace and country-code markers (+, parentheses, dashes)
// are all dropped.
func SanitizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseJID builds a user JID from a raw phone number.
func ParseJID(phone string) (types.JID, error) {
	cleaned := SanitizePhone(phone)
	if cleaned == "" {
		return types.JID{}, fmt.Errorf("empty phone number")
	}
	return types.NewJID(cleaned, types.DefaultUserServer), nil
}

// FormatPairingCode splits a raw pairing code into groups of four characters
// joined by a dash, e.g. "WXYZABCD" -> "WXYZ-ABCD". A shorter final group is
// kept as-is. Codes that already contain the delimiter pass through
// unchanged.
func FormatPairingCode(code string) string {
	if strings.Contains(code, "-") {
		return code
	}
	var groups []string
	for len(code) > 4 {
		groups = append(groups, code[:4])
		code = code[4:]
	}
	if code != "" {
		groups = append(groups, code)
	}
	return strings.Join(groups, "-")
}

// ExtractPhoneFromJID pulls the bare number out of a JID string, dropping
// the device part: "15551234567:43@s.whatsapp.net" -> "15551234567".
func ExtractPhoneFromJID(jid string) string {
	atSplit := strings.SplitN(jid, "@", 2)
	if len(atSplit) == 0 {
		return jid
	}
	beforeAt := atSplit[0]
	colonSplit := strings.SplitN(beforeAt, ":", 2)
	return colonSplit[0]
}
