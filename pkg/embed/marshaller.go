package erkao

import (
	"fmt"
	"reflect"

	"github.com/erkao-lang/erkao/internal/value"
)

// marshaller converts between Go values and Erkao runtime values. Every
// conversion that allocates a heap object (Array, Map, String) routes
// through the owning VM's interner and allocator so the result is
// GC-tracked the same as anything the interpreter itself would produce.
type marshaller struct {
	vm *VM
}

func newMarshaller(vm *VM) *marshaller { return &marshaller{vm: vm} }

// toValue converts a Go value into an Erkao value.Value. A Go func
// becomes a value.Native that marshals its arguments and return value on
// every call; a pointer becomes a hostObject wrapping it by reference.
func (m *marshaller) toValue(val interface{}) (value.Value, error) {
	if val == nil {
		return value.Null(), nil
	}
	if v, ok := val.(value.Value); ok {
		return v, nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Number(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return value.Number(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return value.Number(rv.Float()), nil
	case reflect.Bool:
		return value.Bool(rv.Bool()), nil
	case reflect.String:
		return value.FromObject(m.vm.interner.Intern(rv.String())), nil
	case reflect.Slice, reflect.Array:
		items := make([]value.Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := m.toValue(rv.Index(i).Interface())
			if err != nil {
				return value.Null(), err
			}
			items[i] = v
		}
		arr := value.NewArray(m.vm.interp, items)
		m.vm.interp.Track(arr)
		return value.FromObject(arr), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value.Null(), fmt.Errorf("erkao: cannot bind a map keyed by %s, only string keys are supported", rv.Type().Key())
		}
		out := value.NewMap(m.vm.interp)
		m.vm.interp.Track(out)
		iter := rv.MapRange()
		for iter.Next() {
			v, err := m.toValue(iter.Value().Interface())
			if err != nil {
				return value.Null(), err
			}
			out.Set(m.vm.interner.Intern(iter.Key().String()), v)
		}
		return value.FromObject(out), nil
	case reflect.Struct:
		out := value.NewMap(m.vm.interp)
		m.vm.interp.Track(out)
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue // unexported
			}
			v, err := m.toValue(rv.Field(i).Interface())
			if err != nil {
				return value.Null(), err
			}
			out.Set(m.vm.interner.Intern(field.Name), v)
		}
		return value.FromObject(out), nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return value.Null(), nil
		}
		return value.FromObject(newHostObject(m, val)), nil
	case reflect.Func:
		return value.FromObject(m.wrapFunc(rv)), nil
	default:
		return value.FromObject(newHostObject(m, val)), nil
	}
}

// wrapFunc adapts a Go function to a value.Native: every call marshals
// its Erkao arguments into Go values by reflection, invokes fn, and
// marshals the result(s) back.
func (m *marshaller) wrapFunc(fn reflect.Value) *value.Native {
	t := fn.Type()
	numIn := t.NumIn()
	variadic := t.IsVariadic()
	arity := numIn
	if variadic {
		arity = -1 // value.Native's convention for "don't arity-check"
	}
	native := func(args []value.Value) (value.Value, error) {
		if !variadic && len(args) != numIn {
			return value.Null(), fmt.Errorf("expected %d arguments, got %d", numIn, len(args))
		}
		if variadic && len(args) < numIn-1 {
			return value.Null(), fmt.Errorf("expected at least %d arguments, got %d", numIn-1, len(args))
		}
		goArgs := make([]reflect.Value, len(args))
		for i, a := range args {
			var target reflect.Type
			switch {
			case variadic && i >= numIn-1:
				target = t.In(numIn - 1).Elem()
			default:
				target = t.In(i)
			}
			v, err := m.fromValue(a, target)
			if err != nil {
				return value.Null(), fmt.Errorf("argument %d: %w", i, err)
			}
			if v == nil {
				goArgs[i] = reflect.Zero(target)
			} else {
				goArgs[i] = reflect.ValueOf(v)
			}
		}
		results := fn.Call(goArgs)
		if len(results) == 0 {
			return value.Null(), nil
		}
		if len(results) == 1 {
			return m.toValue(results[0].Interface())
		}
		items := make([]value.Value, len(results))
		for i, r := range results {
			v, err := m.toValue(r.Interface())
			if err != nil {
				return value.Null(), err
			}
			items[i] = v
		}
		arr := value.NewArray(m.vm.interp, items)
		m.vm.interp.Track(arr)
		return value.FromObject(arr), nil
	}
	return value.NewNative(m.vm.interner.Intern("<host func>"), arity, native)
}

// fromValue converts an Erkao value back into a Go value. targetType, if
// non-nil, steers numeric width and slice element type; with a nil
// target it picks the most natural Go type for the value's kind.
func (m *marshaller) fromValue(v value.Value, targetType reflect.Type) (interface{}, error) {
	if targetType != nil && targetType == reflect.TypeOf((*value.Value)(nil)).Elem() {
		return v, nil
	}
	switch {
	case v.IsNull():
		return nil, nil
	case v.IsBool():
		return v.AsBool(), nil
	case v.IsNumber():
		if targetType != nil {
			switch targetType.Kind() {
			case reflect.Int:
				return int(v.AsNumber()), nil
			case reflect.Int64:
				return int64(v.AsNumber()), nil
			case reflect.Float32:
				return float32(v.AsNumber()), nil
			}
		}
		return v.AsNumber(), nil
	case v.Is(value.KindString):
		return v.AsObject().(*value.String).Inspect(), nil
	case v.Is(value.KindArray):
		arr := v.AsObject().(*value.Array)
		elemType := reflect.TypeOf((*interface{})(nil)).Elem()
		if targetType != nil && targetType.Kind() == reflect.Slice {
			elemType = targetType.Elem()
		}
		out := reflect.MakeSlice(reflect.SliceOf(elemType), 0, len(arr.Items))
		for _, item := range arr.Items {
			gv, err := m.fromValue(item, elemType)
			if err != nil {
				return nil, err
			}
			if gv == nil {
				out = reflect.Append(out, reflect.Zero(elemType))
				continue
			}
			rv := reflect.ValueOf(gv)
			if rv.Type().AssignableTo(elemType) {
				out = reflect.Append(out, rv)
			} else if rv.Type().ConvertibleTo(elemType) {
				out = reflect.Append(out, rv.Convert(elemType))
			} else {
				return nil, fmt.Errorf("cannot convert %s to %s", rv.Type(), elemType)
			}
		}
		return out.Interface(), nil
	case v.Is(value.KindMap):
		mp := v.AsObject().(*value.Map)
		out := make(map[string]interface{}, mp.Len())
		mp.Each(func(key *value.String, val value.Value) {
			gv, _ := m.fromValue(val, nil)
			out[key.Inspect()] = gv
		})
		return out, nil
	default:
		if h, ok := v.AsObject().(*hostObject); ok {
			return h.goValue, nil
		}
		return nil, fmt.Errorf("erkao: no Go representation for %s", v.Inspect())
	}
}
