package walk

import (
	"strings"

	"github.com/vpbank/snmp_monitor/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Catalog — registered MIB object lookup
// ─────────────────────────────────────────────────────────────────────────────

// Catalog holds the registered MIB object definitions and answers
// longest-prefix queries against them. It is immutable after construction and
// safe for concurrent use.
type Catalog struct {
	objects []catalogEntry
}

type catalogEntry struct {
	oid  string // normalised, no leading dot
	name string
}

// NewCatalog builds a Catalog from the registered object definitions.
// OIDs are normalised (leading dot stripped) so that gosnmp's dotted names
// match regardless of form.
func NewCatalog(objects []models.MibObject) *Catalog {
	c := &Catalog{objects: make([]catalogEntry, 0, len(objects))}
	for _, o := range objects {
		c.objects = append(c.objects, catalogEntry{
			oid:  NormalizeOID(o.OID),
			name: o.Name,
		})
	}
	return c
}

// Match resolves the owning catalog object for a binding OID by longest
// matching registered prefix. It returns the catalog OID, the display name,
// and the row index (the binding OID suffix after the catalog OID). The
// boolean is false when no registered object is a prefix of the binding.
//
// An exact match (no suffix) yields an empty row index.
func (c *Catalog) Match(bindingOID string) (oid, name, rowIndex string, ok bool) {
	b := NormalizeOID(bindingOID)
	bestLen := -1
	for _, e := range c.objects {
		if len(e.oid) <= bestLen {
			continue
		}
		if b == e.oid {
			oid, name, rowIndex, ok = e.oid, e.name, "", true
			bestLen = len(e.oid)
			continue
		}
		if strings.HasPrefix(b, e.oid+".") {
			oid, name, rowIndex, ok = e.oid, e.name, b[len(e.oid)+1:], true
			bestLen = len(e.oid)
		}
	}
	return oid, name, rowIndex, ok
}

// NormalizeOID strips a leading dot so OIDs compare consistently.
func NormalizeOID(oid string) string {
	return strings.TrimPrefix(oid, ".")
}
