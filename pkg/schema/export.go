package schema

import (
	"encoding/json"
)

// IntrospectionJSON renders the schema as the value of an introspection
// __schema field, with types in name order. FromIntrospection accepts the
// output wrapped as {"__schema": ...}.
func (s *Schema) IntrospectionJSON() ([]byte, error) {
	return json.Marshal(s.toIntrospection())
}

func (s *Schema) toIntrospection() *introspectionSchema {
	raw := &introspectionSchema{
		Description: optString(s.description),
		QueryType:   &namedRef{Name: s.query},
		Types:       []*fullType{},
	}
	if s.mutation != "" {
		raw.MutationType = &namedRef{Name: s.mutation}
	}
	if s.subscription != "" {
		raw.SubscriptionType = &namedRef{Name: s.subscription}
	}

	for _, name := range s.TypeNames() {
		t := s.types[name]
		ft := &fullType{Kind: t.Kind, Name: t.Name, Description: optString(t.Description)}
		switch t.Kind {
		case KindObject, KindInterface:
			ft.Fields = make([]*fieldDef, 0, len(t.Fields))
			for _, f := range t.Fields {
				fd := &fieldDef{
					Name:         f.Name,
					Description:  optString(f.Description),
					Args:         s.inputValues(f.Args),
					Type:         s.exportRef(f.Type),
					IsDeprecated: f.IsDeprecated,
				}
				if f.IsDeprecated {
					fd.DeprecationReason = optString(f.DeprecationReason)
				}
				ft.Fields = append(ft.Fields, fd)
			}
			ft.Interfaces = make([]*typeRef, 0, len(t.Interfaces))
			for _, i := range t.Interfaces {
				ft.Interfaces = append(ft.Interfaces, s.exportRef(Named(i)))
			}
			if t.Kind == KindInterface {
				ft.PossibleTypes = s.namedRefs(t.PossibleTypes)
			}
		case KindUnion:
			ft.PossibleTypes = s.namedRefs(t.PossibleTypes)
		case KindEnum:
			ft.EnumValues = make([]*enumValue, 0, len(t.EnumValues))
			for _, v := range t.EnumValues {
				ft.EnumValues = append(ft.EnumValues, &enumValue{Name: v})
			}
		case KindInputObject:
			ft.InputFields = s.inputValues(t.InputFields)
		}
		raw.Types = append(raw.Types, ft)
	}
	return raw
}

func (s *Schema) inputValues(in []*InputValue) []*inputValue {
	out := make([]*inputValue, 0, len(in))
	for _, iv := range in {
		out = append(out, &inputValue{
			Name:         iv.Name,
			Description:  optString(iv.Description),
			Type:         s.exportRef(iv.Type),
			DefaultValue: iv.DefaultValue,
		})
	}
	return out
}

func (s *Schema) namedRefs(names []string) []*typeRef {
	out := make([]*typeRef, 0, len(names))
	for _, n := range names {
		out = append(out, s.exportRef(Named(n)))
	}
	return out
}

func (s *Schema) exportRef(t *TypeRef) *typeRef {
	switch t.Kind {
	case KindList, KindNonNull:
		return &typeRef{Kind: t.Kind, OfType: s.exportRef(t.OfType)}
	}
	r := namedTypeRef(t.Name)
	if def := s.types[t.Name]; def != nil {
		r.Kind = def.Kind
	}
	return r
}
