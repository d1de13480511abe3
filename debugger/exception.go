// Copyright © 2026 The ELPS authors

package debugger

// ExceptionInfo describes a value thrown in the debuggee.
type ExceptionInfo struct {
	TypeName string
	Text     string
	Uncaught bool
	Location *Location
}

// valueTypeNames maps the debuggee's value type tags to display names.
// Object-like tags are refined by the value's class name when present.
var valueTypeNames = map[string]string{
	"undefined": "Undefined",
	"null":      "Null",
	"number":    "Number",
	"boolean":   "Boolean",
	"string":    "String",
	"regexp":    "RegExp",
	"function":  "Function",
	"object":    "Object",
	"error":     "Error",
}

// normalizeTypeName translates a debuggee type tag. For objects and
// errors the class name (TypeError, Buffer, ...) is more precise and wins.
func normalizeTypeName(typ, className string) string {
	switch typ {
	case "object", "error":
		if className != "" {
			return className
		}
	}
	if name, ok := valueTypeNames[typ]; ok {
		return name
	}
	if typ == "" {
		return "Unknown"
	}
	return typ
}
