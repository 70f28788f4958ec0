package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// BodyToGo converts the attributes of an HCL body into plain Go values,
// for tasks that hand their subtree to external tools in another format.
func BodyToGo(body hcl.Body) (map[string]any, error) {
	out := make(map[string]any)
	if body == nil {
		return out, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		out[name] = ValueToGo(val)
	}
	return out, nil
}

// ValueToGo converts a cty value into the corresponding plain Go value.
func ValueToGo(val cty.Value) any {
	if val.IsNull() {
		return nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString()
	case ty == cty.Bool:
		return val.True()
	case ty == cty.Number:
		if i, acc := val.AsBigFloat().Int64(); acc == 0 {
			return i
		}
		f, _ := val.AsBigFloat().Float64()
		return f
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var items []any
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			items = append(items, ValueToGo(v))
		}
		return items
	case ty.IsObjectType() || ty.IsMapType():
		m := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			m[k.AsString()] = ValueToGo(v)
		}
		return m
	default:
		return val.GoString()
	}
}
