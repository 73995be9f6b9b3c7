package eventbus

import "reflect"

// newZeroOf allocates a pointer to a new zero value of payload's type,
// suitable as the destination of json.Unmarshal.
func newZeroOf(payload any) any {
	t := reflect.TypeOf(payload)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return reflect.New(t).Interface()
}

// derefIfPointer returns out with the same "pointerness" as original: if
// original was a value type, out (a pointer) is dereferenced back to a
// value so listeners see the same shape they would have without copying.
func derefIfPointer(original, out any) any {
	if reflect.TypeOf(original).Kind() == reflect.Ptr {
		return out
	}
	return reflect.ValueOf(out).Elem().Interface()
}
