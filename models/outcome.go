package models

// ─────────────────────────────────────────────────────────────────────────────
// Outcome — enumerated operation results
// ─────────────────────────────────────────────────────────────────────────────

// Outcome is the closed set of results an operation can report. Outcomes are
// data, not errors: every gateway and façade operation returns one instead of
// raising, and the wire protocol carries its String form in the result field.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeNoData
	OutcomeNotFound
	OutcomeDBError
	OutcomeNoAgents
	OutcomeNoAgent
	OutcomeInvalid
	OutcomeFailed
	OutcomeTimeout
	OutcomeBadRequest
	OutcomeNoJSON
)

// String renders the wire form of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoData:
		return "nodata"
	case OutcomeNotFound:
		return "notfound"
	case OutcomeDBError:
		return "dberror"
	case OutcomeNoAgents:
		return "noagents"
	case OutcomeNoAgent:
		return "noagent"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeBadRequest:
		return "badrequest"
	case OutcomeNoJSON:
		return "nojson"
	default:
		return "unknown"
	}
}

// MarshalText lets an Outcome be embedded directly in wire responses.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// UserLogKind — audit trail event kinds
// ─────────────────────────────────────────────────────────────────────────────

// UserLogKind is the closed set of audit trail event kinds. The numeric
// values are the stored domain codes and must not be reordered.
type UserLogKind int

const (
	UserLogLoginSuccess UserLogKind = 1
	UserLogLoginFailure UserLogKind = 2
	UserLogLogout       UserLogKind = 3
)

func (k UserLogKind) String() string {
	switch k {
	case UserLogLoginSuccess:
		return "login-success"
	case UserLogLoginFailure:
		return "login-failure"
	case UserLogLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Domain constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	// SessionCodeLength is the fixed length of every issued session code.
	SessionCodeLength = 25

	// TrapIDUncategorized is the reserved trap catalog id assigned to
	// notifications whose trap OID matches no definition.
	TrapIDUncategorized = 999
)
