package feature

import (
	"fmt"
	"strings"
)

// MetaTier is the reserved tier for unit bookkeeping features.
const MetaTier = "meta"

// ActiveKey is the implicit confirmation-state feature every unit type
// owns. It is defined automatically when a type is registered and may
// not be declared explicitly.
var ActiveKey = Key{Tier: MetaTier, Feature: "active"}

// Key addresses one feature within a tier. The serialized form
// "tier:feature" is the feature column value in the typed ledgers.
type Key struct {
	Tier    string
	Feature string
}

// String renders the key in its stored "tier:feature" form.
func (k Key) String() string {
	return k.Tier + ":" + k.Feature
}

// ParseKey splits a stored "tier:feature" string back into a Key.
func ParseKey(s string) (Key, error) {
	tier, feat, ok := strings.Cut(s, ":")
	if !ok || tier == "" || feat == "" {
		return Key{}, fmt.Errorf("malformed feature key %q: want \"tier:feature\"", s)
	}
	return Key{Tier: tier, Feature: feat}, nil
}

// CheckMetaField reports whether a (feature, kind) pair may be declared
// under the meta tier. Only meta:parent (ref) and meta:index (int) are
// permitted; meta:active is implicit and everything else is rejected.
func CheckMetaField(featureName string, kind Kind) bool {
	switch {
	case featureName == "parent" && kind == KindRef:
		return true
	case featureName == "index" && kind == KindInt:
		return true
	}
	return false
}
