package introspect

import (
	"github.com/graphql-go/graphql"
)

// ExecuteQuery runs a GraphQL query against schema.
func ExecuteQuery(query string, schema graphql.Schema) *graphql.Result {
	return graphql.Do(graphql.Params{Schema: schema, RequestString: query})
}

// ExecuteQueryWithVariables runs a GraphQL query with variables.
func ExecuteQueryWithVariables(query string, schema graphql.Schema, variables map[string]any) *graphql.Result {
	return graphql.Do(graphql.Params{Schema: schema, RequestString: query, VariableValues: variables})
}
