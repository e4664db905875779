package trapreceiver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gosnmp/gosnmp"
	"github.com/vpbank/snmp_monitor/models"
	"github.com/vpbank/snmp_monitor/snmp/walk"
)

// Well-known binding OIDs in v2c/v3 notification payloads.
const (
	// OIDSysUpTimeInstance carries the sender's uptime and adds nothing to
	// the event record, so it is excluded from the detail text.
	OIDSysUpTimeInstance = "1.3.6.1.2.1.1.3.0"

	// OIDSnmpTrapOID is the binding that names the notification type.
	OIDSnmpTrapOID = "1.3.6.1.6.3.1.1.4.1.0"
)

// DefinitionLookup resolves a notification OID to a catalogued trap
// definition. The second return is false when the OID is not catalogued.
type DefinitionLookup func(oid string) (models.TrapDefinition, bool, error)

// Classification is the outcome of matching one notification against the
// trap catalog.
type Classification struct {
	TrapID  int64  // definition id, or models.TrapIDUncategorized
	TrapOID string // notification type OID, "" when the binding was absent
	Detail  string // human-readable payload, one binding per line
}

// Classify inspects a notification's variable bindings and produces the
// event record fields. Bindings carrying protocol error values are skipped.
// An unrecognised notification OID yields the uncategorized id with the raw
// OID prepended to the detail text.
func Classify(varbinds []gosnmp.SnmpPDU, catalog *walk.Catalog, lookup DefinitionLookup, logger *slog.Logger) (Classification, error) {
	var (
		trapOID string
		detail  strings.Builder
	)

	for _, vb := range varbinds {
		oid := walk.NormalizeOID(vb.Name)
		if oid == OIDSysUpTimeInstance {
			continue
		}
		if walk.IsErrorType(vb.Type) {
			logger.Warn("trapreceiver: error-typed binding skipped", "oid", oid, "type", vb.Type)
			continue
		}
		if oid == OIDSnmpTrapOID {
			trapOID = walk.RenderValue("", vb)
			continue
		}

		label := oid
		catalogOID := ""
		if matched, name, _, ok := catalog.Match(oid); ok {
			label = name
			catalogOID = matched
		}
		fmt.Fprintf(&detail, "%s : %s\n", label, walk.RenderValue(catalogOID, vb))
	}

	out := Classification{
		TrapID:  models.TrapIDUncategorized,
		TrapOID: trapOID,
		Detail:  detail.String(),
	}

	if trapOID != "" {
		def, ok, err := lookup(trapOID)
		if err != nil {
			return Classification{}, fmt.Errorf("trap definition lookup %s: %w", trapOID, err)
		}
		if ok {
			out.TrapID = def.ID
			return out, nil
		}
	}

	// Keep the unrecognised type visible in the record itself.
	out.Detail = fmt.Sprintf("OID: %s\n%s", trapOID, out.Detail)
	return out, nil
}
