package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/store"
)

const testSeed = `
fields:
  - mnemonic: PX_CLOSE
    type: dbl
    storage: wide
    table: Pricing
    column: PxClose
    fx: money
  - mnemonic: NAV_CLOSE
    type: dbl
    storage: long
    table: FieldSnapshot
    periodicity: D
    fx: money
  - mnemonic: FUND_MANAGER
    type: chr
    storage: long
    table: SecuritySnapshot
    point: true
    history: false
  - mnemonic: EXPENSE_RATIO
    type: dbl
    storage: long
    table: FieldSnapshot
    periodicity: M
mappings:
  - field: NAV_CLOSE
    security_type: MF
    table: Pricing
    column: NavLast
    priority: 10
`

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sf, err := ParseSeed([]byte(testSeed))
	require.NoError(t, err)
	require.NoError(t, sf.Install(context.Background(), s))
	return s
}

func TestLoadAndResolve(t *testing.T) {
	s := seedStore(t)
	r, err := Load(context.Background(), s)
	require.NoError(t, err)

	def, err := r.Resolve("PX_CLOSE")
	require.NoError(t, err)
	assert.Equal(t, model.TypeDouble, def.DataType)
	assert.Equal(t, model.StorageWide, def.StorageMode)
	assert.Equal(t, "Pricing", def.StorageTable)
	assert.Equal(t, "PxClose", def.StorageColumn)
	assert.Equal(t, model.FxMoney, def.FxMode)

	long, err := r.Resolve("NAV_CLOSE")
	require.NoError(t, err)
	assert.Equal(t, model.StorageLong, long.StorageMode)
	assert.Empty(t, long.StorageColumn)
	assert.Same(t, long, r.ByID(long.ID))
}

func TestResolveUnknownField(t *testing.T) {
	s := seedStore(t)
	r, err := Load(context.Background(), s)
	require.NoError(t, err)

	_, err = r.Resolve("NOT_A_FIELD")
	require.Error(t, err)
	assert.True(t, IsUnknownField(err))
	assert.False(t, IsSchemaError(err))
}

func TestPartition(t *testing.T) {
	s := seedStore(t)
	r, err := Load(context.Background(), s)
	require.NoError(t, err)

	p := r.Partition([]string{"PX_CLOSE", "NAV_CLOSE", "BOGUS", "FUND_MANAGER"})
	require.Len(t, p.Wide, 1)
	assert.Equal(t, "PX_CLOSE", p.Wide[0].Mnemonic)
	require.Len(t, p.Long, 2)
	assert.Equal(t, []string{"BOGUS"}, p.Unmapped)
}

func TestMappingFor(t *testing.T) {
	s := seedStore(t)
	r, err := Load(context.Background(), s)
	require.NoError(t, err)

	nav, err := r.Resolve("NAV_CLOSE")
	require.NoError(t, err)

	m, ok := r.MappingFor(nav.ID, "MF")
	require.True(t, ok)
	assert.Equal(t, "Pricing", m.SourceTable)
	assert.Equal(t, "NavLast", m.SourceColumn)

	// No mapping for other security types: the default source applies.
	_, ok = r.MappingFor(nav.ID, "ETF")
	assert.False(t, ok)
}

func TestForOperation(t *testing.T) {
	s := seedStore(t)
	r, err := Load(context.Background(), s)
	require.NoError(t, err)

	var history []string
	for _, def := range r.ForOperation(OpHistory) {
		history = append(history, def.Mnemonic)
	}
	// FUND_MANAGER opted out of ranged reads.
	assert.NotContains(t, history, "FUND_MANAGER")
	assert.Contains(t, history, "PX_CLOSE")

	var point []string
	for _, def := range r.ForOperation(OpPoint) {
		point = append(point, def.Mnemonic)
	}
	assert.Contains(t, point, "FUND_MANAGER")
}

func TestSeedInstallIsIdempotent(t *testing.T) {
	s := seedStore(t)

	// Installing the same seed again must not duplicate definitions.
	sf, err := ParseSeed([]byte(testSeed))
	require.NoError(t, err)
	require.NoError(t, sf.Install(context.Background(), s))

	r, err := Load(context.Background(), s)
	require.NoError(t, err)
	assert.Len(t, r.All(), 4)
}

func TestParseSeedRejectsDuplicateMnemonic(t *testing.T) {
	_, err := ParseSeed([]byte(`
fields:
  - mnemonic: PX_CLOSE
    type: dbl
    storage: wide
    table: Pricing
    column: PxClose
  - mnemonic: PX_CLOSE
    type: dbl
    storage: wide
    table: Pricing
    column: PxLast
`))
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}

func TestParseSeedRejectsBadTypes(t *testing.T) {
	_, err := ParseSeed([]byte(`
fields:
  - mnemonic: X
    type: float
    storage: wide
    table: Pricing
    column: PxClose
`))
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))

	_, err = ParseSeed([]byte(`
fields:
  - mnemonic: X
    type: dbl
    storage: diagonal
    table: Pricing
    column: PxClose
`))
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}

func TestParseSeedRejectsDanglingMapping(t *testing.T) {
	_, err := ParseSeed([]byte(`
fields:
  - mnemonic: X
    type: dbl
    storage: wide
    table: Pricing
    column: PxClose
mappings:
  - field: Y
    security_type: MF
    table: Pricing
    column: NavLast
    priority: 10
`))
	require.Error(t, err)
	assert.True(t, IsUnknownField(err))
}
