package livestock

import "strings"

// DepletionType is the canonical identifier for an outbound movement
// cause. Legacy records use Indonesian labels; Normalize maps both
// directions so old data and new clients meet in one vocabulary.
type DepletionType string

const (
	TypeMortality        DepletionType = "mortality"
	TypeCulling          DepletionType = "culling"
	TypeSlaughter        DepletionType = "slaughter"
	TypeLoss             DepletionType = "loss"
	TypeSale             DepletionType = "sale"
	TypeInternalTransfer DepletionType = "internal_transfer"
	TypeUnknown          DepletionType = "unknown"
)

type depletionTypeInfo struct {
	legacyLabel    string
	aliases        []string
	counter        ConsumptionCounter
	requiredFields []string
}

var depletionTypes = map[DepletionType]depletionTypeInfo{
	TypeMortality: {
		legacyLabel: "Mati",
		counter:     CounterDepleted,
	},
	TypeCulling: {
		legacyLabel: "Afkir",
		counter:     CounterDepleted,
	},
	TypeSlaughter: {
		legacyLabel: "Potong",
		counter:     CounterDepleted,
	},
	TypeLoss: {
		legacyLabel: "Hilang",
		counter:     CounterDepleted,
	},
	TypeSale: {
		legacyLabel:    "Terjual",
		aliases:        []string{"Jual"},
		counter:        CounterSold,
		requiredFields: []string{"unit_price", "buyer_name"},
	},
	TypeInternalTransfer: {
		legacyLabel:    "Mutasi",
		counter:        CounterMutated,
		requiredFields: []string{"destination_owner_id"},
	},
}

// legacyIndex maps lowercased legacy labels and aliases to canonical types.
var legacyIndex = func() map[string]DepletionType {
	idx := make(map[string]DepletionType)
	for t, info := range depletionTypes {
		idx[strings.ToLower(info.legacyLabel)] = t
		for _, a := range info.aliases {
			idx[strings.ToLower(a)] = t
		}
	}
	return idx
}()

// Normalize maps a label (canonical or legacy, any case) to its
// canonical type. Unrecognized input yields TypeUnknown; normalization
// never fails so historical records with odd labels still load.
func Normalize(label string) DepletionType {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return TypeUnknown
	}
	if _, ok := depletionTypes[DepletionType(key)]; ok {
		return DepletionType(key)
	}
	if t, ok := legacyIndex[key]; ok {
		return t
	}
	return TypeUnknown
}

// LegacyLabel returns the legacy display label for a canonical type,
// or the canonical string itself when no legacy label exists.
func (t DepletionType) LegacyLabel() string {
	if info, ok := depletionTypes[t]; ok {
		return info.legacyLabel
	}
	return string(t)
}

// Counter returns the batch counter this type increments.
func (t DepletionType) Counter() ConsumptionCounter {
	if info, ok := depletionTypes[t]; ok {
		return info.counter
	}
	return CounterUnknown
}

// RequiredFields lists the extra request fields this type demands.
func (t DepletionType) RequiredFields() []string {
	if info, ok := depletionTypes[t]; ok {
		return info.requiredFields
	}
	return nil
}

// IsKnown reports whether the type is part of the canonical vocabulary.
func (t DepletionType) IsKnown() bool {
	_, ok := depletionTypes[t]
	return ok
}

// IsMutation reports whether the type moves heads between owners
// instead of removing them from the ledger.
func (t DepletionType) IsMutation() bool {
	return t.Counter() == CounterMutated
}

// KnownTypes returns every canonical type in stable order.
func KnownTypes() []DepletionType {
	return []DepletionType{
		TypeMortality, TypeCulling, TypeSlaughter, TypeLoss,
		TypeSale, TypeInternalTransfer,
	}
}
