package audit

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// DefaultRecentLimit bounds ReadRecent when the caller passes no limit.
const DefaultRecentLimit = 500

var (
	// ErrInvalidEntry marks an entry rejected before persistence.
	ErrInvalidEntry = errors.New("audit: invalid entry")
	// ErrNestedDetail marks a details payload holding a non-primitive value.
	ErrNestedDetail = errors.New("audit: details must be flat primitives")
)

// Action is the kind of privileged action recorded.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionMarkPaid Action = "mark_paid"
	ActionApprove  Action = "approve"
	ActionReceive  Action = "receive"
	ActionCancel   Action = "cancel"
)

// EntityType is the kind of entity an action applies to.
type EntityType string

const (
	EntitySale      EntityType = "sale"
	EntityPurchase  EntityType = "purchase"
	EntityProduct   EntityType = "product"
	EntityCustomer  EntityType = "customer"
	EntitySupplier  EntityType = "supplier"
	EntityReturn    EntityType = "return"
	EntityTransfer  EntityType = "transfer"
	EntityInventory EntityType = "inventory"
	EntityBranch    EntityType = "branch"
	EntityWarehouse EntityType = "warehouse"
	EntityUser      EntityType = "user"
)

// Details is a flat mapping of string keys to string, number, boolean or nil.
// Integers are held as int64 and fractional numbers as float64 once cloned or
// decoded, so a payload reads back with the types it was written with.
type Details map[string]any

// Validate rejects nested values, unsigned integers beyond int64 and
// non-finite floats.
func (d Details) Validate() error {
	for k, v := range d {
		switch n := v.(type) {
		case nil, string, bool,
			int, int8, int16, int32, int64,
			uint8, uint16, uint32:
		case uint:
			if uint64(n) > math.MaxInt64 {
				return fmt.Errorf("%w: key %q overflows int64", ErrNestedDetail, k)
			}
		case uint64:
			if n > math.MaxInt64 {
				return fmt.Errorf("%w: key %q overflows int64", ErrNestedDetail, k)
			}
		case float32:
			if !finite(float64(n)) {
				return fmt.Errorf("%w: key %q is not finite", ErrNestedDetail, k)
			}
		case float64:
			if !finite(n) {
				return fmt.Errorf("%w: key %q is not finite", ErrNestedDetail, k)
			}
		default:
			return fmt.Errorf("%w: key %q holds %T", ErrNestedDetail, k, v)
		}
	}
	return nil
}

// Clone returns a shallow copy with numbers normalised to int64 or float64;
// a nil receiver yields an empty map.
func (d Details) Clone() Details {
	out := make(Details, len(d))
	for k, v := range d {
		out[k] = normalizeDetail(v)
	}
	return out
}

// Entry is a persisted, immutable audit record.
type Entry struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   string     `json:"tenant_id"`
	ActorID    string     `json:"actor_id"`
	ActorName  string     `json:"actor_name"`
	Action     Action     `json:"action"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id,omitempty"`
	Details    Details    `json:"details"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewEntry is an entry before the store assigns its identity and timestamp.
// ActorName is captured at write time and never re-resolved.
type NewEntry struct {
	TenantID   string     `json:"tenant_id" validate:"required,max=64"`
	ActorID    string     `json:"actor_id" validate:"required,max=64"`
	ActorName  string     `json:"actor_name" validate:"max=255"`
	Action     Action     `json:"action" validate:"required,oneof=create update delete mark_paid approve receive cancel"`
	EntityType EntityType `json:"entity_type" validate:"required,oneof=sale purchase product customer supplier return transfer inventory branch warehouse user"`
	EntityID   string     `json:"entity_id,omitempty" validate:"max=128"`
	Details    Details    `json:"details"`
}

var validate = validator.New()

// Validate checks the entry before persistence.
func (e NewEntry) Validate() error {
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+":"+fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidEntry, strings.Join(fields, ","))
		}
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if err := e.Details.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	return nil
}

// TenantScope is the mandatory tenant filter of every audit read. The zero
// value is invalid; obtain one with NewTenantScope.
type TenantScope struct {
	tenantID string
}

// NewTenantScope returns a scope for tenantID, or ErrMissingTenantScope when
// the identifier is blank.
func NewTenantScope(tenantID string) (TenantScope, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return TenantScope{}, fmt.Errorf("audit: %w", shared.ErrMissingTenantScope)
	}
	return TenantScope{tenantID: tenantID}, nil
}

// TenantID returns the scoped tenant identifier.
func (s TenantScope) TenantID() string {
	return s.tenantID
}

// Valid reports whether the scope names a tenant.
func (s TenantScope) Valid() bool {
	return s.tenantID != ""
}
