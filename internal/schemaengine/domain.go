// Package schemaengine extracts a database's schema and data into a
// stream of artifacts and re-applies such a stream to a (normally empty)
// target database (§4.4). A single Adapter interface hides the
// MySQL/PostgreSQL differences so the orchestrator never branches on
// engine type.
package schemaengine

import (
	"context"
	"io"

	"github.com/allisson/backydb/internal/errors"
)

// ObjectCategory is one kind of database object the engine can extract or
// apply.
type ObjectCategory string

const (
	Tables     ObjectCategory = "tables"
	Data       ObjectCategory = "data"
	Views      ObjectCategory = "views"
	Functions  ObjectCategory = "functions"
	Procedures ObjectCategory = "procedures"
	Triggers   ObjectCategory = "triggers"
	Events     ObjectCategory = "events"
)

// CreateOrder lists categories in the order they must be created/restored
// (§4.4 rule 2: "tables → views → functions → procedures → triggers →
// events"), with Data slotted in after Views and before Triggers per rule
// 3 ("after all table and view DDL, and before trigger creation").
var CreateOrder = []ObjectCategory{Tables, Views, Data, Functions, Procedures, Triggers, Events}

// DropOrder is CreateOrder reversed, used to tear down dependent objects
// before the tables they depend on (§4.4 rule 1).
func DropOrder() []ObjectCategory {
	out := make([]ObjectCategory, len(CreateOrder))
	for i, c := range CreateOrder {
		out[len(out)-1-i] = c
	}
	return out
}

// Features selects which object categories participate in an
// extract/apply (§6's per-category bools).
type Features struct {
	Tables     bool
	Data       bool
	Views      bool
	Functions  bool
	Procedures bool
	Triggers   bool
	Events     bool
}

// Enabled reports whether category is turned on in f.
func (f Features) Enabled(category ObjectCategory) bool {
	switch category {
	case Tables:
		return f.Tables
	case Data:
		return f.Data
	case Views:
		return f.Views
	case Functions:
		return f.Functions
	case Procedures:
		return f.Procedures
	case Triggers:
		return f.Triggers
	case Events:
		return f.Events
	default:
		return false
	}
}

// Artifact is one emitted unit of DDL/DML, named for its member file when
// multiple_files is set (e.g. "tables.sql").
type Artifact struct {
	Category ObjectCategory
	Name     string
	Body     io.Reader
}

// Adapter hides engine-specific (MySQL vs PostgreSQL) extraction and
// application behind one contract.
type Adapter interface {
	// EngineType returns the manifest-facing engine identifier, e.g.
	// "mysql" or "postgresql".
	EngineType() string
	// EngineVersion queries the connected server's version string.
	EngineVersion(ctx context.Context) (string, error)
	// Extract produces the DDL/DML body for category, in dependency-safe
	// order within the category.
	Extract(ctx context.Context, category ObjectCategory) (io.Reader, error)
	// Apply executes every statement in body against the database.
	Apply(ctx context.Context, category ObjectCategory, body io.Reader) error
}

var (
	// ErrConnectFailed indicates the adapter could not reach the database.
	ErrConnectFailed = errors.Wrap(errors.ErrConnectFailed, "schemaengine: connect failed")
	// ErrPermissionDenied indicates the connected role lacks privileges for
	// an extract or apply operation.
	ErrPermissionDenied = errors.Wrap(errors.ErrPermissionDenied, "schemaengine: permission denied")
	// ErrSyntaxError indicates a statement in an applied stream failed to
	// parse or execute due to malformed SQL.
	ErrSyntaxError = errors.Wrap(errors.ErrSyntaxError, "schemaengine: syntax error")
	// ErrConstraintViolation indicates a statement violated a database
	// constraint (FK, unique, check) during apply.
	ErrConstraintViolation = errors.Wrap(errors.ErrConstraintViolation, "schemaengine: constraint violation")
)
