package config

import "github.com/vpbank/snmp_monitor/models"

// ─────────────────────────────────────────────────────────────────────────────
// Built-in catalogs
// ─────────────────────────────────────────────────────────────────────────────

// BuiltinMibObjects is the static MIB object catalog: the system, interfaces,
// and ip subtree objects the walker recognizes and the query façade projects.
// Order fixes the snapshot ordering within each group.
func BuiltinMibObjects() []models.MibObject {
	return []models.MibObject{
		// system group
		{OID: "1.3.6.1.2.1.1.1", Name: "os", GroupOID: "1.3.6.1.2.1.1", Order: 1},
		{OID: "1.3.6.1.2.1.1.3", Name: "uptime", GroupOID: "1.3.6.1.2.1.1", Order: 2},
		{OID: "1.3.6.1.2.1.1.5", Name: "system_name", GroupOID: "1.3.6.1.2.1.1", Order: 3},
		{OID: "1.3.6.1.2.1.1.6", Name: "system_location", GroupOID: "1.3.6.1.2.1.1", Order: 4},

		// interfaces group
		{OID: "1.3.6.1.2.1.2.2.1.1", Name: "interface_id", GroupOID: "1.3.6.1.2.1.2", Order: 10},
		{OID: "1.3.6.1.2.1.2.2.1.2", Name: "interface_name", GroupOID: "1.3.6.1.2.1.2", Order: 11},
		{OID: "1.3.6.1.2.1.2.2.1.4", Name: "mtu", GroupOID: "1.3.6.1.2.1.2", Order: 12},
		{OID: "1.3.6.1.2.1.2.2.1.5", Name: "bandwidth", GroupOID: "1.3.6.1.2.1.2", Order: 13},
		{OID: "1.3.6.1.2.1.2.2.1.6", Name: "mac_address", GroupOID: "1.3.6.1.2.1.2", Order: 14},
		{OID: "1.3.6.1.2.1.2.2.1.7", Name: "admin_status", GroupOID: "1.3.6.1.2.1.2", Order: 15},
		{OID: "1.3.6.1.2.1.2.2.1.8", Name: "operate_status", GroupOID: "1.3.6.1.2.1.2", Order: 16},
		{OID: "1.3.6.1.2.1.2.2.1.10", Name: "in_packets", GroupOID: "1.3.6.1.2.1.2", Order: 17},
		{OID: "1.3.6.1.2.1.2.2.1.13", Name: "in_packets_destruct", GroupOID: "1.3.6.1.2.1.2", Order: 18},
		{OID: "1.3.6.1.2.1.2.2.1.14", Name: "in_packets_error", GroupOID: "1.3.6.1.2.1.2", Order: 19},
		{OID: "1.3.6.1.2.1.2.2.1.16", Name: "out_packets", GroupOID: "1.3.6.1.2.1.2", Order: 20},
		{OID: "1.3.6.1.2.1.2.2.1.19", Name: "out_packets_destruct", GroupOID: "1.3.6.1.2.1.2", Order: 21},
		{OID: "1.3.6.1.2.1.2.2.1.20", Name: "out_packets_error", GroupOID: "1.3.6.1.2.1.2", Order: 22},

		// ip group
		{OID: "1.3.6.1.2.1.4.20.1.1", Name: "ip_address", GroupOID: "1.3.6.1.2.1.4", Order: 30},
		{OID: "1.3.6.1.2.1.4.20.1.2", Name: "ip_interface_id", GroupOID: "1.3.6.1.2.1.4", Order: 31},
		{OID: "1.3.6.1.2.1.4.20.1.3", Name: "subnet_mask", GroupOID: "1.3.6.1.2.1.4", Order: 32},
		{OID: "1.3.6.1.2.1.4.20.1.4", Name: "broadcast_address", GroupOID: "1.3.6.1.2.1.4", Order: 33},
		{OID: "1.3.6.1.2.1.4.21.1.1", Name: "route_destination", GroupOID: "1.3.6.1.2.1.4", Order: 34},
		{OID: "1.3.6.1.2.1.4.21.1.2", Name: "route_interface_id", GroupOID: "1.3.6.1.2.1.4", Order: 35},
		{OID: "1.3.6.1.2.1.4.22.1.2", Name: "neighbor_mac_address", GroupOID: "1.3.6.1.2.1.4", Order: 36},
	}
}

// BuiltinTrapDefinitions is the default trap catalog: the six generic
// notification types plus the reserved uncategorized entry.
func BuiltinTrapDefinitions() []models.TrapDefinition {
	return []models.TrapDefinition{
		{ID: 1, OID: "1.3.6.1.6.3.1.1.5.1", Name: "coldStart", Description: "The agent restarted with its configuration possibly altered.", Handling: "Verify the device came back with the expected configuration."},
		{ID: 2, OID: "1.3.6.1.6.3.1.1.5.2", Name: "warmStart", Description: "The agent restarted without configuration changes.", Handling: "Confirm the restart was expected."},
		{ID: 3, OID: "1.3.6.1.6.3.1.1.5.3", Name: "linkDown", Description: "One of the agent's interfaces left the up state.", Handling: "Check the interface and its cabling."},
		{ID: 4, OID: "1.3.6.1.6.3.1.1.5.4", Name: "linkUp", Description: "One of the agent's interfaces entered the up state.", Handling: "Confirm the interface was expected to come up."},
		{ID: 5, OID: "1.3.6.1.6.3.1.1.5.5", Name: "authenticationFailure", Description: "A protocol message failed authentication.", Handling: "Check for credential mismatches or unauthorized access attempts."},
		{ID: 6, OID: "1.3.6.1.6.3.1.1.5.6", Name: "egpNeighborLoss", Description: "An EGP peer relationship was lost.", Handling: "Check routing adjacency on the device."},
		{ID: models.TrapIDUncategorized, OID: "", Name: "uncategorized", Description: "A notification whose type OID matches no catalog entry.", Handling: "Inspect the raw OID carried in the detail text."},
	}
}
