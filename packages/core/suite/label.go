package suite

import (
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

// anonymousFunc matches the symbol suffix the compiler gives closures.
var anonymousFunc = regexp.MustCompile(`\.(func|gowrap)\d+(\.\d+)*$`)

// funcLabel derives a label from the declared name of fn. Closures have no
// declared name and yield "".
func funcLabel(fn any) string {
	if fn == nil {
		return ""
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	name := f.Name()
	if anonymousFunc.MatchString(name) {
		return ""
	}
	name = strings.TrimSuffix(name, "-fm")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
