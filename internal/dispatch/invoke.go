package dispatch

//
// Reflective member invocation with loose numeric matching.
//

import (
	"fmt"
	"reflect"
)

// Invoke performs dynamic member lookup and invocation on the
// implementation behind the handle. Boxed and unboxed numeric and
// boolean argument types are considered equivalent when matching the
// member's parameter signature.
//
// Invoke fails with ErrNoSuchMember when no signature-compatible
// member exists and with an *InvocationFault wrapping the callee's own
// error when the call itself fails.
func Invoke(handle *Handle, member string, args ...any) (any, error) {
	if err := handle.live(); err != nil {
		return nil, err
	}
	self := reflect.ValueOf(handle.reg.Value)
	method := self.MethodByName(member)
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchMember, handle.name, member)
	}
	in, ok := matchArgs(method.Type(), args)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s with %d argument(s)",
			ErrNoSuchMember, handle.name, member, len(args))
	}
	return call(method, in, handle.name+"."+member)
}

// Construct applies the same matching rules to the registered
// constructors, returning a newly constructed instance.
func Construct(handle *Handle, args ...any) (any, error) {
	if err := handle.live(); err != nil {
		return nil, err
	}
	// choose the most specific compatible constructor, where
	// specificity counts exact (conversion-free) argument matches
	best := reflect.Value{}
	bestScore := -1
	var bestIn []reflect.Value
	for _, ctor := range handle.reg.Constructors {
		fn := reflect.ValueOf(ctor)
		if fn.Kind() != reflect.Func {
			continue
		}
		in, ok := matchArgs(fn.Type(), args)
		if !ok {
			continue
		}
		score := specificity(fn.Type(), args)
		if score > bestScore {
			best, bestScore, bestIn = fn, score, in
		}
	}
	if bestScore < 0 {
		return nil, fmt.Errorf("%w: constructor for %s with %d argument(s)",
			ErrNoSuchMember, handle.name, len(args))
	}
	return call(best, bestIn, handle.name+".<init>")
}

// call invokes fn converting panics and trailing error returns into
// an *InvocationFault.
func call(fn reflect.Value, in []reflect.Value, member string) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = &InvocationFault{Member: member, Cause: fmt.Errorf("panic: %v", rec)}
		}
	}()
	results := fn.Call(in)
	// a trailing error return is the callee reporting its own failure
	if n := len(results); n > 0 {
		if last, ok := results[n-1].Interface().(error); ok && last != nil {
			return nil, &InvocationFault{Member: member, Cause: last}
		}
		if results[n-1].Type() == errType {
			results = results[:n-1]
		}
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0].Interface(), nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// matchArgs checks whether args fit the function signature and, when
// they do, returns the converted call arguments.
func matchArgs(ftype reflect.Type, args []any) ([]reflect.Value, bool) {
	if ftype.IsVariadic() || ftype.NumIn() != len(args) {
		return nil, false
	}
	in := make([]reflect.Value, 0, len(args))
	for idx, arg := range args {
		converted, ok := convertArg(arg, ftype.In(idx))
		if !ok {
			return nil, false
		}
		in = append(in, converted)
	}
	return in, true
}

// specificity counts the arguments that match the signature without
// any numeric conversion.
func specificity(ftype reflect.Type, args []any) int {
	score := 0
	for idx, arg := range args {
		if arg == nil {
			continue
		}
		if reflect.TypeOf(arg) == ftype.In(idx) {
			score++
		}
	}
	return score
}

// convertArg adapts one argument to the target parameter type. Numeric
// kinds convert freely among themselves, mirroring boxed/unboxed
// equivalence; everything else requires assignability.
func convertArg(arg any, target reflect.Type) (reflect.Value, bool) {
	if arg == nil {
		// a nil argument fits any nilable parameter
		switch target.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface,
			reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(target), true
		default:
			return reflect.Value{}, false
		}
	}
	value := reflect.ValueOf(arg)
	if value.Type().AssignableTo(target) {
		return value, true
	}
	if isNumeric(value.Kind()) && isNumeric(target.Kind()) {
		return value.Convert(target), true
	}
	return reflect.Value{}, false
}

// isNumeric reports whether the kind is a numeric kind.
func isNumeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
