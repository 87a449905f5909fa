package schema

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greetParams struct {
	Name     string  `mcp:"name" description:"Name to greet" required:"true"`
	Greeting string  `mcp:"greeting" description:"Custom greeting"`
	Age      *int    `mcp:"age" description:"Age in years"`
	Tags     []string `mcp:"tags" description:"Keywords"`
}

func TestFromStructBasicFields(t *testing.T) {
	s, warnings := FromStruct(reflect.TypeOf(greetParams{}))
	assert.Empty(t, warnings)

	props, ok := s["properties"].(map[string]interface{})
	require.True(t, ok)

	name, ok := props["name"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "string", name["type"])
	assert.Equal(t, "Name to greet", name["description"])

	age, ok := props["age"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "integer", age["type"])

	tags, ok := props["tags"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "array", tags["type"])

	required, ok := s["required"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, required)
}

func TestFromStructPointerFieldDefaultsOptional(t *testing.T) {
	s, _ := FromStruct(reflect.TypeOf(greetParams{}))
	required, _ := s["required"].([]string)
	assert.NotContains(t, required, "age")
}

type enumParams struct {
	Status string `mcp:"status" enum:"open,closed,pending"`
}

func TestFromStructEnum(t *testing.T) {
	s, _ := FromStruct(reflect.TypeOf(enumParams{}))
	props := s["properties"].(map[string]interface{})
	status := props["status"].(map[string]interface{})
	assert.Equal(t, []interface{}{"open", "closed", "pending"}, status["enum"])
}

type addressShape struct {
	Street string `mcp:"street"`
}

type poBoxShape struct {
	Box string `mcp:"box"`
}

type oneOfParams struct {
	Payload interface{} `mcp:"payload,oneOf=address,poBox"`
}

func TestFromStructOneOfUnion(t *testing.T) {
	RegisterUnionMember[addressShape]("address")
	RegisterUnionMember[poBoxShape]("poBox")

	s, warnings := FromStruct(reflect.TypeOf(oneOfParams{}))
	assert.Empty(t, warnings)

	props := s["properties"].(map[string]interface{})
	payload := props["payload"].(map[string]interface{})

	alternatives, ok := payload["oneOf"].([]interface{})
	require.True(t, ok)
	assert.Len(t, alternatives, 2)
}

func TestFromStructOneOfUnregisteredMemberWarns(t *testing.T) {
	type unresolved struct {
		Payload interface{} `mcp:"payload,oneOf=doesNotExist"`
	}
	_, warnings := FromStruct(reflect.TypeOf(unresolved{}))
	assert.NotEmpty(t, warnings)
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	s, _ := FromStruct(reflect.TypeOf(greetParams{}))
	violations, err := Validate(s, map[string]interface{}{})
	require.NoError(t, err)
	assert.NotEmpty(t, violations)
}

func TestValidateAcceptsWellFormedArgs(t *testing.T) {
	s, _ := FromStruct(reflect.TypeOf(greetParams{}))
	violations, err := Validate(s, map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)
	assert.Empty(t, violations)
}
