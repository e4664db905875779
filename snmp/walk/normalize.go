package walk

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// ─────────────────────────────────────────────────────────────────────────────
// Well-known OID constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	// OIDIfPhysAddress is ifPhysAddress — the interface hardware address
	// column of the interfaces table.
	OIDIfPhysAddress = "1.3.6.1.2.1.2.2.1.6"

	// OIDNetToMediaPhysAddress is ipNetToMediaPhysAddress — the hardware
	// address column of the address translation table.
	OIDNetToMediaPhysAddress = "1.3.6.1.2.1.4.22.1.2"

	// EmptyHardwareAddress is the rendered form of an absent hardware
	// address value.
	EmptyHardwareAddress = "00-00-00-00-00-00"
)

// ─────────────────────────────────────────────────────────────────────────────
// Value rendering
// ─────────────────────────────────────────────────────────────────────────────

// RenderValue converts a raw binding value into its normalized string form.
// Values owned by the two hardware-address catalog objects are rendered as
// twelve uppercase hex characters in hyphen-separated pairs; any raw value
// that is not a 48-bit address falls back to the all-zero address. Every
// other value is rendered in its natural string form.
func RenderValue(catalogOID string, pdu gosnmp.SnmpPDU) string {
	if catalogOID == OIDIfPhysAddress || catalogOID == OIDNetToMediaPhysAddress {
		return renderHardwareAddress(pdu.Value)
	}
	return renderRaw(pdu.Value)
}

// renderHardwareAddress formats a raw 48-bit octet string as
// XX-XX-XX-XX-XX-XX. Anything that is not exactly six octets (absent values,
// EUI-64 addresses, serial interfaces) falls back to the all-zero address, so
// a rendered hardware address is always twelve hex characters.
func renderHardwareAddress(v interface{}) string {
	b, _ := v.([]byte)
	if len(b) != 6 {
		return EmptyHardwareAddress
	}

	h := strings.ToUpper(hex.EncodeToString(b))
	var sb strings.Builder
	for i := 0; i < len(h); i += 2 {
		if i > 0 {
			sb.WriteByte('-')
		}
		sb.WriteString(h[i : i+2])
	}
	return sb.String()
}

// renderRaw converts a decoded gosnmp value to its natural string form.
// gosnmp hands OctetStrings over as []byte and everything numeric as a Go
// integer type; OIDs and IP addresses arrive as strings.
func renderRaw(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return NormalizeOID(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// IsErrorType reports whether the PDU carries a protocol-level error sentinel
// instead of a value.
func IsErrorType(t gosnmp.Asn1BER) bool {
	switch t {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return true
	default:
		return false
	}
}
