package task

import (
	"strings"
	"unicode"
)

// nameSuffix is the marker every task type name carries.
const nameSuffix = "Task"

// DeriveName maps a task type name to its runtime name: the fixed "Task"
// suffix is stripped and the remaining camel-case words are joined with
// underscores in lower case, so "SetExtendedMemoryLimitTask" becomes
// "set_extended_memory_limit". The second return value is false when the
// type name does not carry the suffix and therefore is not a task.
func DeriveName(typeName string) (string, bool) {
	if !strings.HasSuffix(typeName, nameSuffix) || typeName == nameSuffix {
		return "", false
	}
	base := strings.TrimSuffix(typeName, nameSuffix)

	var b strings.Builder
	for i, r := range base {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String(), true
}
