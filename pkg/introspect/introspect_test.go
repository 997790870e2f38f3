package introspect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/nodemeta/pkg/rules"
	"github.com/graphforge/nodemeta/pkg/scanner"
	"github.com/graphforge/nodemeta/pkg/semfield"
)

func sampleRegistry() *rules.Registry {
	builtin := map[rules.ClassName]rules.NodeClassRules{
		"KSampler": {
			semfield.Seed:  rules.Spec{FieldName: "seed"},
			semfield.Steps: rules.Spec{FieldName: "steps"},
		},
	}
	return rules.NewRegistry(builtin, nil)
}

func TestGenerateSchema_ClassesQueryListsKnownClasses(t *testing.T) {
	src := NewSource(sampleRegistry())
	schema, err := GenerateSchema(src)
	require.NoError(t, err)

	result := ExecuteQuery(`{ classes }`, schema)
	require.False(t, result.HasErrors(), "%v", result.Errors)

	data := result.Data.(map[string]interface{})
	classes := data["classes"].([]interface{})
	require.Len(t, classes, 1)
	assert.Equal(t, "KSampler", classes[0])
}

func TestGenerateSchema_ClassQueryResolvesFields(t *testing.T) {
	src := NewSource(sampleRegistry())
	schema, err := GenerateSchema(src)
	require.NoError(t, err)

	result := ExecuteQuery(`{ class(name: "KSampler") { name fields { fieldEnumName layer } } }`, schema)
	require.False(t, result.HasErrors(), "%v", result.Errors)

	data := result.Data.(map[string]interface{})
	class := data["class"].(map[string]interface{})
	assert.Equal(t, "KSampler", class["name"])
	fields := class["fields"].([]interface{})
	assert.Len(t, fields, 2)
	first := fields[0].(map[string]interface{})
	assert.Equal(t, "builtin", first["layer"])
}

func TestGenerateSchema_UnknownClassResolvesNull(t *testing.T) {
	src := NewSource(sampleRegistry())
	schema, err := GenerateSchema(src)
	require.NoError(t, err)

	result := ExecuteQuery(`{ class(name: "NoSuchClass") { name } }`, schema)
	require.False(t, result.HasErrors(), "%v", result.Errors)
	data := result.Data.(map[string]interface{})
	assert.Nil(t, data["class"])
}

func TestGenerateSchema_ScannerProposalNullWhenNoneRecorded(t *testing.T) {
	src := NewSource(sampleRegistry())
	schema, err := GenerateSchema(src)
	require.NoError(t, err)

	result := ExecuteQuery(`{ scannerProposal { classesScanned } }`, schema)
	require.False(t, result.HasErrors(), "%v", result.Errors)
	data := result.Data.(map[string]interface{})
	assert.Nil(t, data["scannerProposal"])
}

func TestGenerateSchema_ScannerProposalReflectsRecordedReport(t *testing.T) {
	src := NewSource(sampleRegistry())
	src.RecordProposal(&scanner.Proposal{
		Classes: map[rules.ClassName]rules.NodeClassRules{
			"LoraLoader": {semfield.LoraModelName: rules.Spec{FieldName: "lora_name"}},
		},
		ForcedNodeClasses: map[rules.ClassName]rules.NodeClassRules{},
	}, scanner.DiffReport{ClassesScanned: 3, ClassesProposed: 1, FieldsProposed: 1, BaselineCacheHit: true})

	schema, err := GenerateSchema(src)
	require.NoError(t, err)

	result := ExecuteQuery(`{ scannerProposal { classesScanned classesProposed fieldsProposed baselineCacheHit diffText classes { name fieldEnumNames } } }`, schema)
	require.False(t, result.HasErrors(), "%v", result.Errors)

	data := result.Data.(map[string]interface{})
	sp := data["scannerProposal"].(map[string]interface{})
	assert.Equal(t, 3, sp["classesScanned"])
	assert.Equal(t, true, sp["baselineCacheHit"])
	assert.True(t, strings.HasPrefix(sp["diffText"].(string), "scanned=3"))

	classes := sp["classes"].([]interface{})
	require.Len(t, classes, 1)
	first := classes[0].(map[string]interface{})
	assert.Equal(t, "LoraLoader", first["name"])
}

func TestHandler_ServeHTTPExecutesQuery(t *testing.T) {
	src := NewSource(sampleRegistry())
	schema, err := GenerateSchema(src)
	require.NoError(t, err)
	handler := NewHandler(schema)

	body := strings.NewReader(`{"query": "{ health }"}`)
	req := httptest.NewRequest(http.MethodPost, "/graphql", body)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "ok", data["health"])
}

func TestHandler_RejectsNonPOST(t *testing.T) {
	src := NewSource(sampleRegistry())
	schema, err := GenerateSchema(src)
	require.NoError(t, err)
	handler := NewHandler(schema)

	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
