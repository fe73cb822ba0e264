package sqltext

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParam_Single(t *testing.T) {
	txt := Format("%v = %v", Identifier("t", "status"), "active")

	assert.Equal(t, `"t"."status" = $1`, txt.Query())
	assert.Equal(t, []any{"active"}, txt.Parameters())
}

func TestConcat_RenumbersContiguously(t *testing.T) {
	a := Format("a = %v AND b = %v", 1, 2)
	b := Format("c = %v", 3)

	got := Concat(a, Raw(" OR "), b)

	assert.Equal(t, "a = $1 AND b = $2 OR c = $3", got.Query())
	assert.Equal(t, []any{1, 2, 3}, got.Parameters())

	// Reversing the composition order keeps each placeholder aligned with its value.
	rev := Concat(b, Raw(" OR "), a)
	assert.Equal(t, "c = $1 OR a = $2 AND b = $3", rev.Query())
	assert.Equal(t, []any{3, 1, 2}, rev.Parameters())
}

func TestConcat_NestedDepth(t *testing.T) {
	// Build a deeply nested text where each level adds one parameter on the
	// left and one on the right of the previous level.
	txt := Param(0)
	for i := 1; i <= 10; i++ {
		txt = Format("f(%v, %v, %v)", -i, txt, i)
	}

	params := txt.Parameters()
	require.Len(t, params, 21)
	query := txt.Query()
	for i := range params {
		assert.Contains(t, query, fmt.Sprintf("$%d", i+1))
	}
	assert.Equal(t, -10, params[0])
	assert.Equal(t, 0, params[10])
	assert.Equal(t, 10, params[20])
	assert.NotContains(t, query, "$22")
}

func TestJoin(t *testing.T) {
	items := []Text{Param("a"), Param("b"), Param("c")}
	got := Format("ARRAY[%v]", Join(items, Raw(",")))

	assert.Equal(t, "ARRAY[$1,$2,$3]", got.Query())
	assert.Equal(t, []any{"a", "b", "c"}, got.Parameters())
	assert.True(t, Join(nil, Raw(",")).IsEmpty())
}

func TestQueryFor_Question(t *testing.T) {
	txt := Format("x = %v AND y = %v", 1, "two")
	assert.Equal(t, "x = ? AND y = ?", txt.QueryFor(Question))
}

func TestParameters_KeepGoTypes(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	txt := Format("%v %v %v %v", int64(7), 1.5, true, ts)

	params := txt.Parameters()
	assert.IsType(t, int64(0), params[0])
	assert.IsType(t, float64(0), params[1])
	assert.IsType(t, true, params[2])
	assert.IsType(t, time.Time{}, params[3])
}

func TestIdentifier_Escapes(t *testing.T) {
	assert.Equal(t, `"we""ird"`, Identifier(`we"ird`).Query())
	assert.Empty(t, Identifier("a", "b").Parameters())
}

func TestStringLiteral_Escapes(t *testing.T) {
	assert.Equal(t, `'it''s'`, StringLiteral("it's").Query())
}

func TestFormat_PercentAndTextArgs(t *testing.T) {
	got := Format("%v LIKE '%%x' AND %v", Raw("col"), Raw("TRUE"))
	assert.Equal(t, "col LIKE '%x' AND TRUE", got.Query())
	assert.Empty(t, got.Parameters())
}

func TestFormat_ArgumentCountMismatchPanics(t *testing.T) {
	assert.Panics(t, func() { Format("%v %v", 1) })
	assert.Panics(t, func() { Format("%v", 1, 2) })
}

func TestWrapAndEmpty(t *testing.T) {
	assert.Equal(t, "($1)", Param(1).Wrap().Query())
	assert.True(t, Text{}.IsEmpty())
	assert.True(t, Raw("").IsEmpty())
	assert.False(t, Param(nil).IsEmpty())
	assert.Equal(t, []any{}, Text{}.Parameters())
}

func TestInline(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	txt := Format("a = %v AND b = %v AND c = %v AND d = %v AND e = %v AND f IS %v",
		"o'neil", 3, 2.5, false, ts, nil)

	got, err := txt.Inline()
	require.NoError(t, err)
	assert.Equal(t,
		"a = 'o''neil' AND b = 3 AND c = 2.5 AND d = FALSE AND e = '2024-01-02T03:04:05Z' AND f IS NULL",
		got)

	_, err = Param(struct{}{}).Inline()
	assert.Error(t, err)
}
