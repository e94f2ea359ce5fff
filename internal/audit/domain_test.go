package audit

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

func validEntry() NewEntry {
	return NewEntry{TenantID: "t-1", ActorID: "u-1", ActorName: "Ana", Action: ActionCreate, EntityType: EntitySale}
}

func TestNewEntryValidateEnums(t *testing.T) {
	for _, a := range []Action{ActionCreate, ActionUpdate, ActionDelete, ActionMarkPaid, ActionApprove, ActionReceive, ActionCancel} {
		e := validEntry()
		e.Action = a
		assert.NoError(t, e.Validate(), a)
	}
	for _, et := range []EntityType{EntitySale, EntityPurchase, EntityProduct, EntityCustomer, EntitySupplier, EntityReturn, EntityTransfer, EntityInventory, EntityBranch, EntityWarehouse, EntityUser} {
		e := validEntry()
		e.EntityType = et
		assert.NoError(t, e.Validate(), et)
	}

	e := validEntry()
	e.Action = "CREATE"
	assert.ErrorIs(t, e.Validate(), ErrInvalidEntry)

	e = validEntry()
	e.EntityType = ""
	assert.ErrorIs(t, e.Validate(), ErrInvalidEntry)
}

func TestNewEntryRequiresTenantAndActor(t *testing.T) {
	e := validEntry()
	e.TenantID = ""
	err := e.Validate()
	require.ErrorIs(t, err, ErrInvalidEntry)
	assert.Contains(t, err.Error(), "TenantID:required")

	e = validEntry()
	e.ActorID = ""
	assert.ErrorIs(t, e.Validate(), ErrInvalidEntry)
}

func TestDetailsValidate(t *testing.T) {
	ok := Details{"s": "x", "n": 1, "f": 1.5, "b": true, "null": nil, "u": uint16(3)}
	assert.NoError(t, ok.Validate())

	for name, bad := range map[string]Details{
		"map":    {"k": map[string]any{"x": 1}},
		"slice":  {"k": []string{"a"}},
		"struct": {"k": struct{}{}},
	} {
		t.Run(name, func(t *testing.T) {
			err := bad.Validate()
			require.ErrorIs(t, err, ErrNestedDetail)
			e := validEntry()
			e.Details = bad
			assert.ErrorIs(t, e.Validate(), ErrInvalidEntry)
		})
	}
}

func TestDetailsClone(t *testing.T) {
	var nilDetails Details
	assert.Equal(t, Details{}, nilDetails.Clone())

	src := Details{"a": 1}
	dup := src.Clone()
	dup["a"] = 2
	assert.Equal(t, 1, src["a"])
}

func TestDetailsCloneNormalisesNumbers(t *testing.T) {
	dup := Details{"i": 7, "u": uint32(8), "f": float32(0.5), "big": int64(9007199254740993)}.Clone()
	assert.Equal(t, Details{"i": int64(7), "u": int64(8), "f": 0.5, "big": int64(9007199254740993)}, dup)
}

func TestDetailsValidateRejectsUnrepresentableNumbers(t *testing.T) {
	for name, bad := range map[string]Details{
		"uint64 overflow": {"k": uint64(math.MaxInt64) + 1},
		"nan":             {"k": math.NaN()},
		"inf":             {"k": math.Inf(1)},
		"float32 inf":     {"k": float32(math.Inf(-1))},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, bad.Validate(), ErrNestedDetail)
		})
	}
	assert.NoError(t, Details{"k": uint64(math.MaxInt64)}.Validate())
}

func TestDetailsJSONKeepsNumberKinds(t *testing.T) {
	src := Details{"id": int64(9007199254740993), "qty": 3, "amount": 150.0, "rate": 0.25, "note": nil, "ok": true, "s": "x"}
	raw, err := json.Marshal(src)
	require.NoError(t, err)
	assert.Equal(t, `{"amount":150.0,"id":9007199254740993,"note":null,"ok":true,"qty":3,"rate":0.25,"s":"x"}`, string(raw))

	var back Details
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, src.Clone(), back)
	assert.IsType(t, float64(0), back["amount"])
	assert.IsType(t, int64(0), back["id"])
}

func TestDetailsUnmarshal(t *testing.T) {
	var d Details
	require.NoError(t, json.Unmarshal([]byte(`{"a":1e3,"b":-4,"c":18446744073709551616}`), &d))
	assert.Equal(t, Details{"a": 1000.0, "b": int64(-4), "c": 18446744073709551616.0}, d)

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Nil(t, d)

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &d))
}

func TestDetailsMarshalNil(t *testing.T) {
	var d Details
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))

	_, err = json.Marshal(Details{"x": math.NaN()})
	assert.Error(t, err)
}

func TestTenantScope(t *testing.T) {
	_, err := NewTenantScope("")
	require.ErrorIs(t, err, shared.ErrMissingTenantScope)

	var zero TenantScope
	assert.False(t, zero.Valid())

	scope, err := NewTenantScope(" t-1 ")
	require.NoError(t, err)
	assert.True(t, scope.Valid())
	assert.Equal(t, "t-1", scope.TenantID())
}
