package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/registry"
	"github.com/quantfold/finstore/internal/store"
)

const routerSeed = `
fields:
  - mnemonic: PX_CLOSE
    type: dbl
    storage: wide
    table: Pricing
    column: PxClose
  - mnemonic: PX_VOLUME
    type: dbl
    storage: wide
    table: Pricing
    column: Volume
  - mnemonic: NAV_CLOSE
    type: dbl
    storage: long
    table: FieldSnapshot
  - mnemonic: FUND_MANAGER
    type: chr
    storage: long
    table: SecuritySnapshot
    history: false
    upload: false
mappings:
  - field: NAV_CLOSE
    security_type: MF
    table: Pricing
    column: NavLast
    priority: 10
`

func testRouter(t *testing.T) *Router {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sf, err := registry.ParseSeed([]byte(routerSeed))
	require.NoError(t, err)
	require.NoError(t, sf.Install(context.Background(), s))

	reg, err := registry.Load(context.Background(), s)
	require.NoError(t, err)
	return New(reg)
}

func groupFor(t *testing.T, p Plan, table string) Group {
	t.Helper()
	for _, g := range p.Groups {
		if g.Table == table {
			return g
		}
	}
	t.Fatalf("no group for table %s", table)
	return Group{}
}

func TestPlanReadGroupsByTable(t *testing.T) {
	r := testRouter(t)

	plan, err := r.PlanRead([]string{"PX_CLOSE", "NAV_CLOSE", "PX_VOLUME"}, "ETF", registry.OpHistory)
	require.NoError(t, err)
	require.Len(t, plan.Groups, 2)

	pricing := groupFor(t, plan, "Pricing")
	assert.Equal(t, model.StorageWide, pricing.Mode)
	assert.Len(t, pricing.Targets, 2)

	long := groupFor(t, plan, "FieldSnapshot")
	assert.Equal(t, model.StorageLong, long.Mode)
	require.Len(t, long.Targets, 1)
	assert.Equal(t, "NAV_CLOSE", long.Targets[0].Field.Mnemonic)
	assert.Empty(t, long.Targets[0].SourceColumn)
}

func TestPlanReadAppliesSecurityTypeMapping(t *testing.T) {
	r := testRouter(t)

	// For mutual funds NAV_CLOSE reroutes onto the dense pricing table.
	plan, err := r.PlanRead([]string{"NAV_CLOSE"}, "MF", registry.OpHistory)
	require.NoError(t, err)
	require.Len(t, plan.Groups, 1)

	g := plan.Groups[0]
	assert.Equal(t, "Pricing", g.Table)
	assert.Equal(t, model.StorageWide, g.Mode)
	require.Len(t, g.Targets, 1)
	assert.Equal(t, "NavLast", g.Targets[0].SourceColumn)
}

func TestPlanReadFailsWholeOnUnknownField(t *testing.T) {
	r := testRouter(t)

	// One bad field rejects the whole request, including the good ones.
	_, err := r.PlanRead([]string{"PX_CLOSE", "NO_SUCH_FIELD"}, "ETF", registry.OpHistory)
	require.Error(t, err)
	assert.True(t, IsRoutingError(err))

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUnroutableField, re.Code)
	assert.Equal(t, []string{"NO_SUCH_FIELD"}, re.Fields)
}

func TestPlanReadRejectsWrongOperation(t *testing.T) {
	r := testRouter(t)

	// FUND_MANAGER is point-only.
	_, err := r.PlanRead([]string{"FUND_MANAGER"}, "ETF", registry.OpHistory)
	require.Error(t, err)
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeOperationNotAllowed, re.Code)

	_, err = r.PlanRead([]string{"FUND_MANAGER"}, "ETF", registry.OpPoint)
	assert.NoError(t, err)
}

func TestPlanWriteRejectsReadOnlyField(t *testing.T) {
	r := testRouter(t)

	_, err := r.PlanWrite([]string{"FUND_MANAGER"}, "ETF")
	require.Error(t, err)
	assert.True(t, IsRoutingError(err))

	plan, err := r.PlanWrite([]string{"NAV_CLOSE"}, "ETF")
	require.NoError(t, err)
	assert.Len(t, plan.Groups, 1)
}

func TestPlanFieldsListsPlannedMnemonics(t *testing.T) {
	r := testRouter(t)

	plan, err := r.PlanRead([]string{"NAV_CLOSE", "PX_CLOSE"}, "ETF", registry.OpHistory)
	require.NoError(t, err)
	assert.Equal(t, []string{"NAV_CLOSE", "PX_CLOSE"}, plan.Fields())
}
