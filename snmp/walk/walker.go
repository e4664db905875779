package walk

import (
	"fmt"
	"log/slog"

	"github.com/gosnmp/gosnmp"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sample — one normalized binding
// ─────────────────────────────────────────────────────────────────────────────

// Sample is one binding resolved against the catalog: the owning object, the
// row index derived from the binding OID suffix, and the normalized value.
type Sample struct {
	ObjectOID string
	RowIndex  string
	Value     string
}

// EmitFunc receives each normalized sample as the walk progresses. Returning
// an error aborts the remainder of the walk and is reported to the caller.
type EmitFunc func(Sample) error

// ─────────────────────────────────────────────────────────────────────────────
// Walker
// ─────────────────────────────────────────────────────────────────────────────

// SubtreeSession is the subset of Session the walker consumes. Tests inject a
// stub that replays canned bindings.
type SubtreeSession interface {
	BulkWalk(root string, fn gosnmp.WalkFunc) error
	Close() error
}

// SessionFactory opens a session against a target. The default is NewSession;
// tests substitute their own via NewWithFactory.
type SessionFactory func(Target) (SubtreeSession, error)

// Walker performs paginated subtree enumerations and normalizes the results.
// The zero value is not usable; construct with New.
type Walker struct {
	logger     *slog.Logger
	newSession SessionFactory
}

// New creates a Walker. A nil logger discards output.
func New(logger *slog.Logger) *Walker {
	return NewWithFactory(func(t Target) (SubtreeSession, error) {
		return NewSession(t)
	}, logger)
}

// NewWithFactory creates a Walker whose sessions come from factory.
func NewWithFactory(factory SessionFactory, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Walker{logger: logger, newSession: factory}
}

// Walk enumerates the subtree rooted at root on the target agent, resolving
// each binding against catalog and emitting normalized samples.
//
// Bindings whose OID matches no registered catalog object are discarded.
// A protocol-level binding error (NoSuchObject, NoSuchInstance, EndOfMibView)
// aborts the remainder of the walk and is returned as an error; so is any
// transport or session failure. One walk error never affects other walks.
func (w *Walker) Walk(target Target, root string, catalog *Catalog, emit EmitFunc) error {
	sess, err := w.newSession(target)
	if err != nil {
		return fmt.Errorf("walk: session %s:%d: %w", target.Host, target.Port, err)
	}
	defer sess.Close()

	err = sess.BulkWalk(NormalizeOID(root), func(pdu gosnmp.SnmpPDU) error {
		if IsErrorType(pdu.Type) {
			return fmt.Errorf("binding error %v at %s", pdu.Type, pdu.Name)
		}

		oid, _, rowIndex, ok := catalog.Match(pdu.Name)
		if !ok {
			// Outside the registered catalog; normal for subtree pages
			// that overrun the requested range.
			return nil
		}

		return emit(Sample{
			ObjectOID: oid,
			RowIndex:  rowIndex,
			Value:     RenderValue(oid, pdu),
		})
	})
	if err != nil {
		return fmt.Errorf("walk: subtree %s on %s:%d: %w", root, target.Host, target.Port, err)
	}

	w.logger.Debug("walk: subtree complete", "root", root, "host", target.Host)
	return nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
