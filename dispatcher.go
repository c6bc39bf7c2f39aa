package brisa

import (
	"reflect"
	"strconv"
)

// ParamSource identifies where a bound field's raw value comes from.
type ParamSource int

const (
	SourcePath ParamSource = iota
	SourceQuery
	SourceHeader
	SourceDI
)

// ParamDescriptor declares one field to bind onto a destination struct:
// its source, the name looked up in that source, an optional default, and
// whether its absence is a 422 rather than a zero value.
type ParamDescriptor struct {
	Field    string
	Source   ParamSource
	Name     string
	Default  string
	Required bool
}

// Bind populates dest's fields from the request according to descriptors,
// coercing each raw string into the field's declared Go type. dest must be
// a non-nil pointer to a struct. DI-sourced fields are resolved from
// container through the request's scope.
//
// Binding happens in descriptor order, following whatever path → query →
// header → DI precedence the caller encodes by listing descriptors in that
// order; Bind does not reorder them itself.
func (ctx *RequestCtx) Bind(dest any, descriptors []ParamDescriptor, container *Container) *Error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return NewError(KindHandler, "Bind: dest must be a pointer to a struct")
	}
	elem := v.Elem()

	for _, d := range descriptors {
		field := elem.FieldByName(d.Field)
		if !field.IsValid() || !field.CanSet() {
			return Errorf(KindHandler, "Bind: unknown or unsettable field %q", d.Field)
		}

		if d.Source == SourceDI {
			if container == nil {
				return Errorf(KindServiceConstruction, "Bind: field %q requires a container", d.Field)
			}
			val, err := ctx.Scope().Resolve(container, d.Name)
			if err != nil {
				return Wrap(KindServiceConstruction, err, "resolving "+d.Name).
					WithDetails(map[string]any{"field": d.Field})
			}
			rv := reflect.ValueOf(val)
			if !rv.IsValid() || !rv.Type().AssignableTo(field.Type()) {
				return Errorf(KindServiceConstruction, "Bind: service %q is not assignable to field %q", d.Name, d.Field).
					WithDetails(map[string]any{"field": d.Field})
			}
			field.Set(rv)
			continue
		}

		raw, present := ctx.rawParam(d.Source, d.Name)
		if !present {
			if d.Default != "" {
				raw, present = d.Default, true
			} else if d.Required {
				return Errorf(KindValidationFailed, "missing required parameter %q", d.Name).
					WithDetails(map[string]any{"field": d.Field, "source": sourceName(d.Source)})
			}
		}
		if !present {
			continue
		}

		if err := coerce(field, raw); err != nil {
			return Errorf(KindValidationFailed, "field %q: %v", d.Field, err).
				WithDetails(map[string]any{"field": d.Field, "source": sourceName(d.Source), "value": raw})
		}
	}

	return nil
}

func (ctx *RequestCtx) rawParam(source ParamSource, name string) (string, bool) {
	switch source {
	case SourcePath:
		return ctx.Param(name)
	case SourceQuery:
		v := ctx.QueryArgs().Peek(name)
		if v == nil {
			return "", false
		}
		return string(v), true
	case SourceHeader:
		v := ctx.Request.Header.Peek(name)
		if v == nil {
			return "", false
		}
		return string(v), true
	default:
		return "", false
	}
}

func sourceName(s ParamSource) string {
	switch s {
	case SourcePath:
		return "path"
	case SourceQuery:
		return "query"
	case SourceHeader:
		return "header"
	case SourceDI:
		return "di"
	default:
		return "unknown"
	}
}

// coerce converts raw into field's type, supporting string, the integer and
// float kinds, bool, and pointer-to-those for optional parameters.
func coerce(field reflect.Value, raw string) error {
	ft := field.Type()

	if ft.Kind() == reflect.Ptr {
		elem := reflect.New(ft.Elem())
		if err := coerce(elem.Elem(), raw); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	switch ft.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return Errorf(KindValidationFailed, "unsupported field kind %s", ft.Kind())
	}
	return nil
}

// ParamInt reads a path parameter and coerces it to int, a convenience
// wrapper around Param for handlers that skip Bind for a single value.
func (ctx *RequestCtx) ParamInt(name string) (int, error) {
	raw, ok := ctx.Param(name)
	if !ok {
		return 0, Errorf(KindValidationFailed, "missing path parameter %q", name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, Errorf(KindValidationFailed, "path parameter %q: %v", name, err)
	}
	return n, nil
}

// QueryInt reads a query parameter and coerces it to int.
func (ctx *RequestCtx) QueryInt(name string) (int, bool, error) {
	v := ctx.QueryArgs().Peek(name)
	if v == nil {
		return 0, false, nil
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, true, Errorf(KindValidationFailed, "query parameter %q: %v", name, err)
	}
	return n, true, nil
}

// HeaderInt reads a request header and coerces it to int.
func (ctx *RequestCtx) HeaderInt(name string) (int, bool, error) {
	v := ctx.Request.Header.Peek(name)
	if v == nil {
		return 0, false, nil
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, true, Errorf(KindValidationFailed, "header %q: %v", name, err)
	}
	return n, true, nil
}
