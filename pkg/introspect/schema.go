package introspect

import (
	"fmt"
	"sort"

	"github.com/graphql-go/graphql"

	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/scanner"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

// fieldRule is the flattened, resolver-friendly view of one
// rules.Spec entry used as a GraphQL source value.
type fieldRule struct {
	FieldEnumName string
	FieldName     string
	Selector      string
	Format        string
	Layer         string
}

// GenerateSchema builds the read-only introspection schema over src.
func GenerateSchema(src *Source) (graphql.Schema, error) {
	fieldRuleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FieldRule",
		Fields: graphql.Fields{
			"fieldEnumName": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(fieldRule).FieldEnumName, nil
				},
			},
			"fieldName": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(fieldRule).FieldName, nil
				},
			},
			"selector": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(fieldRule).Selector, nil
				},
			},
			"format": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(fieldRule).Format, nil
				},
			},
			"layer": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(fieldRule).Layer, nil
				},
			},
		},
	})

	nodeClassType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NodeClass",
		Fields: graphql.Fields{
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(string), nil
				},
			},
			"fields": &graphql.Field{
				Type: graphql.NewList(fieldRuleType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					class := rules.ClassName(p.Source.(string))
					return resolveFieldRules(src.Registry, class), nil
				},
			},
		},
	})

	proposalFieldType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ProposedNodeClass",
		Fields: graphql.Fields{
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(proposedClass).Name, nil
				},
			},
			"fieldEnumNames": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(proposedClass).FieldEnumNames, nil
				},
			},
		},
	})

	scannerProposalType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ScannerProposal",
		Fields: graphql.Fields{
			"classesScanned": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(proposalView).ClassesScanned, nil
				},
			},
			"classesProposed": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(proposalView).ClassesProposed, nil
				},
			},
			"fieldsProposed": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(proposalView).FieldsProposed, nil
				},
			},
			"baselineCacheHit": &graphql.Field{
				Type: graphql.Boolean,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(proposalView).BaselineCacheHit, nil
				},
			},
			"diffText": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(proposalView).DiffText, nil
				},
			},
			"classes": &graphql.Field{
				Type: graphql.NewList(proposalFieldType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(proposalView).Classes, nil
				},
			},
		},
	})

	queryFields := graphql.Fields{
		"health": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return "ok", nil
			},
		},
		"classes": &graphql.Field{
			Type: graphql.NewList(graphql.String),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				names := make([]string, 0)
				for _, c := range src.Registry.KnownClasses() {
					names = append(names, string(c))
				}
				return names, nil
			},
		},
		"class": &graphql.Field{
			Type: nodeClassType,
			Args: graphql.FieldConfigArgument{
				"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				name, _ := p.Args["name"].(string)
				for _, c := range src.Registry.KnownClasses() {
					if string(c) == name {
						return name, nil
					}
				}
				return nil, nil
			},
		},
		"scannerProposal": &graphql.Field{
			Type: scannerProposalType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				proposal, report, ok := src.Proposal()
				if !ok {
					return nil, nil
				}
				return buildProposalView(proposal, report), nil
			},
		},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: queryFields,
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("introspect: build schema: %w", err)
	}
	return schema, nil
}

func resolveFieldRules(registry *rules.Registry, class rules.ClassName) []fieldRule {
	merged, ok := registry.Resolve(class)
	if !ok {
		return nil
	}
	out := make([]fieldRule, 0, len(merged))
	for field, spec := range merged {
		out = append(out, fieldRule{
			FieldEnumName: field.EnumName(),
			FieldName:     spec.FieldName,
			Selector:      string(spec.Selector),
			Format:        string(spec.Format),
			Layer:         registry.LayerFor(class, field).String(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FieldEnumName < out[j].FieldEnumName })
	return out
}

type proposedClass struct {
	Name           string
	FieldEnumNames []string
}

type proposalView struct {
	ClassesScanned   int
	ClassesProposed  int
	FieldsProposed   int
	BaselineCacheHit bool
	DiffText         string
	Classes          []proposedClass
}

func buildProposalView(p *scanner.Proposal, report scanner.DiffReport) proposalView {
	view := proposalView{
		ClassesScanned:   report.ClassesScanned,
		ClassesProposed:  report.ClassesProposed,
		FieldsProposed:   report.FieldsProposed,
		BaselineCacheHit: report.BaselineCacheHit,
		DiffText:         report.DiffText(),
	}
	if p == nil {
		return view
	}

	classNames := make([]string, 0, len(p.Classes)+len(p.ForcedNodeClasses))
	byName := map[string][]semfield.Field{}
	for class, fields := range p.Classes {
		classNames = append(classNames, string(class))
		byName[string(class)] = fieldKeys(fields)
	}
	for class, fields := range p.ForcedNodeClasses {
		if _, ok := byName[string(class)]; ok {
			continue
		}
		classNames = append(classNames, string(class))
		byName[string(class)] = fieldKeys(fields)
	}
	sort.Strings(classNames)

	for _, name := range classNames {
		fields := byName[name]
		enumNames := make([]string, 0, len(fields))
		for _, f := range fields {
			enumNames = append(enumNames, f.EnumName())
		}
		sort.Strings(enumNames)
		view.Classes = append(view.Classes, proposedClass{Name: name, FieldEnumNames: enumNames})
	}
	return view
}

func fieldKeys(nr rules.NodeClassRules) []semfield.Field {
	out := make([]semfield.Field, 0, len(nr))
	for f := range nr {
		out = append(out, f)
	}
	return out
}
