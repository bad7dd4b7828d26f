package enums

import "fmt"

// AttributeValueType describes how an attribute's values are entered and rendered.
type AttributeValueType string

const (
	AttributeValueTypeText       AttributeValueType = "text"
	AttributeValueTypeEnumerated AttributeValueType = "enumerated"
	AttributeValueTypeColor      AttributeValueType = "color"
)

var validAttributeValueTypes = []AttributeValueType{
	AttributeValueTypeText,
	AttributeValueTypeEnumerated,
	AttributeValueTypeColor,
}

// String implements fmt.Stringer.
func (a AttributeValueType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AttributeValueType.
func (a AttributeValueType) IsValid() bool {
	for _, candidate := range validAttributeValueTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAttributeValueType converts raw input into an AttributeValueType.
func ParseAttributeValueType(value string) (AttributeValueType, error) {
	for _, candidate := range validAttributeValueTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attribute value type %q", value)
}
