package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCustomPropertyValidate(t *testing.T) {

	t.Run("happy path: a single_select with a default", func(t *testing.T) {
		prop := &CustomProperty{
			PropertyName:  "tier",
			ValueType:     "single_select",
			AllowedValues: []string{"gold", "silver"},
			DefaultValue:  &PropertyValue{Scalar: "silver"},
		}
		assert.Nil(t, prop.validate("myorg"))
	})

	t.Run("error path: selects need allowed_values", func(t *testing.T) {
		prop := &CustomProperty{PropertyName: "tier", ValueType: "single_select"}
		err := prop.validate("myorg")
		assert.NotNil(t, err)
		assert.Contains(t, err.Message, "allowed_values")
	})

	t.Run("error path: a string property cannot restrict values", func(t *testing.T) {
		prop := &CustomProperty{PropertyName: "owner", ValueType: "string", AllowedValues: []string{"x"}}
		assert.NotNil(t, prop.validate("myorg"))
	})

	t.Run("error path: unknown value_type", func(t *testing.T) {
		prop := &CustomProperty{PropertyName: "tier", ValueType: "boolean"}
		assert.NotNil(t, prop.validate("myorg"))
	})

	t.Run("error path: default outside allowed_values", func(t *testing.T) {
		prop := &CustomProperty{
			PropertyName:  "tier",
			ValueType:     "single_select",
			AllowedValues: []string{"gold", "silver"},
			DefaultValue:  &PropertyValue{Scalar: "bronze"},
		}
		err := prop.validate("myorg")
		assert.NotNil(t, err)
		assert.Contains(t, err.Message, "allowed_values")
	})

	t.Run("error path: multi_select values must be arrays", func(t *testing.T) {
		prop := &CustomProperty{
			PropertyName:  "topics",
			ValueType:     "multi_select",
			AllowedValues: []string{"api", "web"},
		}
		err := prop.checkValue("myorg", "on repo app", PropertyValue{Scalar: "api"})
		assert.NotNil(t, err)
		assert.Contains(t, err.Message, "array")

		assert.Nil(t, prop.checkValue("myorg", "on repo app", PropertyValue{IsList: true, List: []string{"api", "web"}}))
	})

	t.Run("error path: scalar types reject arrays", func(t *testing.T) {
		prop := &CustomProperty{PropertyName: "owner", ValueType: "string"}
		err := prop.checkValue("myorg", "on repo app", PropertyValue{IsList: true, List: []string{"x"}})
		assert.NotNil(t, err)
	})
}

func TestPropertyValueEqual(t *testing.T) {
	assert.True(t, PropertyValue{Scalar: "a"}.Equal(PropertyValue{Scalar: "a"}))
	assert.False(t, PropertyValue{Scalar: "a"}.Equal(PropertyValue{IsList: true, List: []string{"a"}}))
	assert.True(t, PropertyValue{IsList: true, List: []string{"a", "b"}}.Equal(PropertyValue{IsList: true, List: []string{"a", "b"}}))
	// upstream keeps list order, so order is significant
	assert.False(t, PropertyValue{IsList: true, List: []string{"a", "b"}}.Equal(PropertyValue{IsList: true, List: []string{"b", "a"}}))
}
