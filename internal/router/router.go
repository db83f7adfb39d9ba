// Package router turns a list of requested field mnemonics into a physical
// access plan: which tables to touch, which tier semantics apply, which
// column or field id keys each field. Callers above the router never see
// table or column names; callers below never see mnemonics.
//
// Planning is all-or-nothing. One unroutable field fails the whole request
// before any query runs, so a result is never silently missing columns.
package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/registry"
)

// Error is a routing failure.
type Error struct {
	Code    ErrorCode
	Message string
	Fields  []string
}

// ErrorCode categorizes routing errors.
type ErrorCode string

const (
	// ErrCodeUnroutableField indicates fields with no definition.
	ErrCodeUnroutableField ErrorCode = "UNROUTABLE_FIELD"

	// ErrCodeOperationNotAllowed indicates fields not flagged for the
	// requested query family.
	ErrCodeOperationNotAllowed ErrorCode = "OPERATION_NOT_ALLOWED"
)

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (fields=%s)", e.Code, e.Message, strings.Join(e.Fields, ","))
}

// IsRoutingError reports whether err is a routing rejection.
func IsRoutingError(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

// Router plans physical access from field metadata.
type Router struct {
	reg *registry.Registry
}

// New builds a Router over a loaded registry.
func New(reg *registry.Registry) *Router {
	return &Router{reg: reg}
}

// Target is one planned field with its physical source resolved, including
// any per-security-type mapping.
type Target struct {
	Field        *model.FieldDef
	SourceTable  string // empty means the field's default table
	SourceColumn string // empty means the field's default column (wide only)
}

// Group is the set of planned fields sharing one destination table and tier.
type Group struct {
	Table   string
	Mode    model.StorageMode
	Targets []Target
}

// Plan is a complete physical access plan for one request.
type Plan struct {
	Groups []Group
}

// Fields lists the planned mnemonics, sorted.
func (p Plan) Fields() []string {
	var out []string
	for _, g := range p.Groups {
		for _, t := range g.Targets {
			out = append(out, t.Field.Mnemonic)
		}
	}
	sort.Strings(out)
	return out
}

// PlanRead builds the access plan for a read of the given fields on behalf
// of one security type.
func (r *Router) PlanRead(mnemonics []string, securityType string, op registry.Operation) (Plan, error) {
	return r.plan(mnemonics, securityType, op)
}

// PlanWrite builds the access plan for an upload of the given fields.
func (r *Router) PlanWrite(mnemonics []string, securityType string) (Plan, error) {
	return r.plan(mnemonics, securityType, registry.OpUpload)
}

func (r *Router) plan(mnemonics []string, securityType string, op registry.Operation) (Plan, error) {
	part := r.reg.Partition(mnemonics)
	if len(part.Unmapped) > 0 {
		return Plan{}, &Error{
			Code:    ErrCodeUnroutableField,
			Message: "no definition for fields",
			Fields:  part.Unmapped,
		}
	}

	var notAllowed []string
	byTable := make(map[string]*Group)
	var order []string

	add := func(def *model.FieldDef) {
		if !allowed(def, op) {
			notAllowed = append(notAllowed, def.Mnemonic)
			return
		}
		target := Target{Field: def}
		table := def.StorageTable
		mode := def.StorageMode
		if m, ok := r.reg.MappingFor(def.ID, securityType); ok {
			target.SourceTable = m.SourceTable
			target.SourceColumn = m.SourceColumn
			table = m.SourceTable
			// A column-addressed mapping lands on the dense tier whatever the
			// field's default mode.
			if m.SourceColumn != "" {
				mode = model.StorageWide
			}
		}
		g, ok := byTable[table]
		if !ok {
			g = &Group{Table: table, Mode: mode}
			byTable[table] = g
			order = append(order, table)
		}
		g.Targets = append(g.Targets, target)
	}

	for _, def := range part.Wide {
		add(def)
	}
	for _, def := range part.Long {
		add(def)
	}

	if len(notAllowed) > 0 {
		return Plan{}, &Error{
			Code:    ErrCodeOperationNotAllowed,
			Message: fmt.Sprintf("fields not flagged for %s", op),
			Fields:  notAllowed,
		}
	}

	var plan Plan
	for _, table := range order {
		plan.Groups = append(plan.Groups, *byTable[table])
	}
	return plan, nil
}

func allowed(def *model.FieldDef, op registry.Operation) bool {
	switch op {
	case registry.OpPoint:
		return def.Point
	case registry.OpHistory:
		return def.History
	case registry.OpDataset:
		return def.Dataset
	case registry.OpUpload:
		return def.Upload
	}
	return false
}
