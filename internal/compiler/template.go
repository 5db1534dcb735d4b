// Package compiler turns CUE bootstrap templates into schema
// definitions. A template declares unit types and their feature
// fields; compiling validates the structure before anything touches a
// project store.
package compiler

import (
	"context"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/stratum/internal/engine"
	"github.com/roach88/stratum/internal/feature"
)

// Template is a compiled bootstrap template: unit types in source
// order, each with its declared feature fields.
type Template struct {
	Types []TypeSpec
}

// TypeSpec is one unit type declaration.
type TypeSpec struct {
	Name   string
	Fields []FieldSpec
}

// FieldSpec is one (tier, feature, kind) declaration.
type FieldSpec struct {
	Tier    string
	Feature string
	Kind    feature.Kind
}

// CompileError is a template validation failure with CUE position
// info when available.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileTemplate parses a CUE value into a Template. The expected
// shape is:
//
//	types: {
//		word: {
//			fields: [
//				{tier: "gloss", feature: "primary", kind: "str"},
//			]
//		}
//	}
func CompileTemplate(v cue.Value) (*Template, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, &CompileError{
			Field:   "types",
			Message: "types is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	tmpl := &Template{}
	for iter.Next() {
		spec, err := compileType(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		tmpl.Types = append(tmpl.Types, *spec)
	}
	if len(tmpl.Types) == 0 {
		return nil, &CompileError{
			Field:   "types",
			Message: "at least one unit type is required",
			Pos:     typesVal.Pos(),
		}
	}

	return tmpl, nil
}

func compileType(name string, v cue.Value) (*TypeSpec, error) {
	spec := &TypeSpec{Name: name}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return spec, nil // a bare type with no declared features is fine
	}

	list, err := fieldsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for list.Next() {
		field, err := compileField(name, list.Value())
		if err != nil {
			return nil, err
		}
		spec.Fields = append(spec.Fields, *field)
	}
	return spec, nil
}

func compileField(typeName string, v cue.Value) (*FieldSpec, error) {
	tier, err := stringField(v, "tier")
	if err != nil {
		return nil, err
	}
	featureName, err := stringField(v, "feature")
	if err != nil {
		return nil, err
	}
	kindName, err := stringField(v, "kind")
	if err != nil {
		return nil, err
	}

	kind, err := feature.ParseKind(kindName)
	if err != nil {
		return nil, &CompileError{
			Field:   typeName + ".fields",
			Message: fmt.Sprintf("invalid value kind %q", kindName),
			Pos:     v.Pos(),
		}
	}

	key := feature.Key{Tier: tier, Feature: featureName}
	if tier == feature.MetaTier && key != feature.ActiveKey && !feature.CheckMetaField(featureName, kind) {
		return nil, &CompileError{
			Field:   typeName + ".fields",
			Message: fmt.Sprintf("meta:%s (%s) is not a permitted meta field", featureName, kind),
			Pos:     v.Pos(),
		}
	}

	return &FieldSpec{Tier: tier, Feature: featureName, Kind: kind}, nil
}

func stringField(v cue.Value, name string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", &CompileError{
			Field:   name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// LoadTemplate compiles a template from a CUE file on disk.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return CompileTemplate(v)
}

// Apply registers a compiled template against a project engine:
// types first, then their fields. The implicit meta:active flag is
// created by DefineType and skipped here even when a template spells
// it out.
func Apply(ctx context.Context, eng *engine.Engine, tmpl *Template) error {
	for _, spec := range tmpl.Types {
		if err := eng.DefineType(ctx, spec.Name); err != nil {
			return err
		}
	}
	for _, spec := range tmpl.Types {
		for _, field := range spec.Fields {
			if field.Tier == feature.MetaTier && field.Feature == feature.ActiveKey.Feature {
				continue
			}
			if err := eng.DefineFeature(ctx, spec.Name, field.Tier, field.Feature, string(field.Kind)); err != nil {
				return err
			}
		}
	}
	return nil
}

// formatCUEError extracts position info from CUE's aggregated errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	pos := token.NoPos
	if len(positions) > 0 {
		pos = positions[0]
	}
	return &CompileError{
		Field:   "cue",
		Message: first.Error(),
		Pos:     pos,
	}
}
