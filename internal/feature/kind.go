package feature

import "fmt"

// Kind identifies which of the four typed ledgers a feature value lives in.
// The string form doubles as the table prefix in the on-disk schema
// (int_features, bool_features, str_features, ref_features).
type Kind string

const (
	KindInt  Kind = "int"
	KindBool Kind = "bool"
	KindStr  Kind = "str"
	KindRef  Kind = "ref"
)

// Kinds lists all supported value kinds in a fixed scan order.
// Reads that union the four ledgers iterate in this order.
var Kinds = []Kind{KindInt, KindBool, KindStr, KindRef}

// ParseKind validates a kind name from external input.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindInt, KindBool, KindStr, KindRef:
		return Kind(s), nil
	}
	return "", fmt.Errorf("invalid value kind %q: must be one of int, bool, str, ref", s)
}

// String returns the kind name as stored in the tiers table.
func (k Kind) String() string {
	return string(k)
}

// Table returns the name of the ledger table for this kind.
func (k Kind) Table() string {
	return string(k) + "_features"
}
