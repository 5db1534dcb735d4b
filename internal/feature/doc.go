// Package feature defines the typed value model for annotation features.
//
// Every feature declared in a project schema has one of four value kinds:
//   - int:  integer values (indexes, counts, scores)
//   - bool: boolean values (flags, confirmation state)
//   - str:  text values (transcriptions, glosses, translations)
//   - ref:  references to other units, stored as unit ids
//
// Values are a sealed variant type: only Int, Bool, Str, and Ref implement
// the Value interface. There is no float kind - probabilities and
// confidences are row metadata, not feature values.
//
// Features are addressed by a Key, the (tier, feature) pair serialized as
// "tier:feature". The "meta" tier is reserved: meta:active is defined
// implicitly for every type, and only meta:parent (ref) and meta:index
// (int) may be declared explicitly.
package feature
