package entity

import "github.com/sheriff-project/sheriff/internal/utils"

// CustomProperty is one org-level custom property definition.
type CustomProperty struct {
	PropertyName  string         `yaml:"property_name"`
	ValueType     string         `yaml:"value_type"` // string, single_select, multi_select
	Required      bool           `yaml:"required,omitempty"`
	DefaultValue  *PropertyValue `yaml:"default_value,omitempty"`
	Description   string         `yaml:"description,omitempty"`
	AllowedValues []string       `yaml:"allowed_values,omitempty"`
}

func (p *CustomProperty) validate(orgname string) *ConfigError {
	if p.PropertyName == "" {
		return NewConfigInvalid("org %s: custom property with empty property_name", orgname)
	}
	switch p.ValueType {
	case "string", "single_select", "multi_select":
	default:
		return NewConfigInvalid("org %s: custom property %s has invalid value_type %q", orgname, p.PropertyName, p.ValueType)
	}

	isSelect := p.ValueType == "single_select" || p.ValueType == "multi_select"
	if isSelect && len(p.AllowedValues) == 0 {
		return NewConfigInvalid("org %s: custom property %s of type %s must declare allowed_values", orgname, p.PropertyName, p.ValueType)
	}
	if !isSelect && p.AllowedValues != nil {
		return NewConfigInvalid("org %s: custom property %s of type string cannot declare allowed_values", orgname, p.PropertyName)
	}

	if p.DefaultValue != nil {
		if err := p.checkValue(orgname, "default_value", *p.DefaultValue); err != nil {
			return err
		}
	}
	return nil
}

// checkValue validates a value (default or per-repo) against the
// property definition: shape must match value_type, and every element
// must be drawn from allowed_values when those are declared.
func (p *CustomProperty) checkValue(orgname, where string, v PropertyValue) *ConfigError {
	if p.ValueType == "multi_select" {
		if !v.IsList {
			return NewConfigInvalid("org %s: property %s %s must be an array for multi_select", orgname, p.PropertyName, where)
		}
	} else if v.IsList {
		return NewConfigInvalid("org %s: property %s %s must be a scalar for %s", orgname, p.PropertyName, where, p.ValueType)
	}

	if len(p.AllowedValues) == 0 {
		return nil
	}
	values := v.List
	if !v.IsList {
		values = []string{v.Scalar}
	}
	for _, val := range values {
		if !utils.StringInSlice(val, p.AllowedValues) {
			return NewConfigInvalid("org %s: property %s %s value %q is not in allowed_values", orgname, p.PropertyName, where, val)
		}
	}
	return nil
}
