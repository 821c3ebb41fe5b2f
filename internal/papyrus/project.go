package papyrus

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"go.trai.ch/zerr"

	"github.com/anubis-build/anubis/internal/core/domain"
)

// ProjectObject destructures a resolved object into the typed record out
// (a pointer to struct), directed by `papyrus` field tags:
//
//	Name string   `papyrus:"name,required"`
//	Srcs []string `papyrus:"srcs,required,nonempty"`
//	Cpp  CcRec    `papyrus:"cpp,type=CcToolchain"`
//	Skip T        `papyrus:"-"`
//
// Missing required fields fail; missing optional fields keep their zero
// value. Unknown fields in the source are reported through warn, never
// fatal. typeName, when non-empty, must match the object's type.
func ProjectObject(v *Value, typeName string, out any, warn func(msg string, args ...any)) error {
	if v == nil || v.Kind != ObjectKind {
		return zerr.Wrap(domain.ErrProjection, "expected an object")
	}
	if typeName != "" && v.Str != typeName {
		return projErr(v.Pos, "expected a %s object, got %s", typeName, v.Str)
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return zerr.Wrap(domain.ErrProjection, "projection target must be a pointer to struct")
	}
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return projectStruct(v, rv.Elem(), warn)
}

func projErr(pos Pos, format string, args ...any) error {
	err := zerr.Wrap(domain.ErrProjection, fmt.Sprintf(format, args...))
	return zerr.With(err, "pos", pos.String())
}

type fieldSpec struct {
	name     string
	required bool
	nonempty bool
	typeName string
	index    int
}

func structSpecs(t reflect.Type) []fieldSpec {
	var specs []fieldSpec
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("papyrus")
		if tag == "" || tag == "-" || !sf.IsExported() {
			continue
		}
		parts := strings.Split(tag, ",")
		spec := fieldSpec{name: parts[0], index: i}
		for _, opt := range parts[1:] {
			switch {
			case opt == "required":
				spec.required = true
			case opt == "nonempty":
				spec.nonempty = true
			case strings.HasPrefix(opt, "type="):
				spec.typeName = strings.TrimPrefix(opt, "type=")
			}
		}
		specs = append(specs, spec)
	}
	return specs
}

func projectStruct(v *Value, dst reflect.Value, warn func(msg string, args ...any)) error {
	specs := structSpecs(dst.Type())
	known := map[string]bool{}
	for _, spec := range specs {
		known[spec.name] = true
	}
	for _, f := range v.Fields {
		if !known[f.Name] {
			warn("unknown field in "+v.Str+" object", "field", f.Name, "pos", f.Value.Pos.String())
		}
	}
	for _, spec := range specs {
		src := v.Field(spec.name)
		if src == nil {
			if spec.required {
				return projErr(v.Pos, "%s object is missing required field %q", v.Str, spec.name)
			}
			continue
		}
		field := dst.Field(spec.index)
		if err := assign(src, field, spec.typeName, warn); err != nil {
			return zerr.With(err, "field", spec.name)
		}
		if spec.nonempty && field.Kind() == reflect.Slice && field.Len() == 0 {
			return projErr(src.Pos, "field %q must not be empty", spec.name)
		}
	}
	return nil
}

func assign(src *Value, dst reflect.Value, typeName string, warn func(msg string, args ...any)) error {
	switch dst.Kind() {
	case reflect.String:
		if src.Kind != StringKind {
			return projErr(src.Pos, "expected string, got %s", src.Kind)
		}
		dst.SetString(src.Str)
		return nil
	case reflect.Bool:
		if src.Kind != BoolKind {
			return projErr(src.Pos, "expected bool, got %s", src.Kind)
		}
		dst.SetBool(src.Bool)
		return nil
	case reflect.Float64:
		if src.Kind != NumberKind {
			return projErr(src.Pos, "expected number, got %s", src.Kind)
		}
		dst.SetFloat(src.Num)
		return nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		return assignInt(src, dst)
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		return assignUint(src, dst)
	case reflect.Slice:
		if src.Kind != ArrayKind {
			return projErr(src.Pos, "expected array, got %s", src.Kind)
		}
		out := reflect.MakeSlice(dst.Type(), len(src.Elems), len(src.Elems))
		for i, e := range src.Elems {
			if err := assign(e, out.Index(i), typeName, warn); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case reflect.Map:
		return assignMap(src, dst, warn)
	case reflect.Struct:
		if src.Kind != ObjectKind {
			return projErr(src.Pos, "expected %s object, got %s", typeName, src.Kind)
		}
		if typeName != "" && src.Str != typeName {
			return projErr(src.Pos, "expected a %s object, got %s", typeName, src.Str)
		}
		return projectStruct(src, dst, warn)
	default:
		return projErr(src.Pos, "cannot project into %s", dst.Type())
	}
}

func assignInt(src *Value, dst reflect.Value) error {
	if src.Kind != NumberKind {
		return projErr(src.Pos, "expected number, got %s", src.Kind)
	}
	if math.Trunc(src.Num) != src.Num {
		return projErr(src.Pos, "expected integer, got fractional %v", src.Num)
	}
	n := int64(src.Num)
	if dst.OverflowInt(n) || float64(n) != src.Num {
		return projErr(src.Pos, "number %v overflows %s", src.Num, dst.Type())
	}
	dst.SetInt(n)
	return nil
}

func assignUint(src *Value, dst reflect.Value) error {
	if src.Kind != NumberKind {
		return projErr(src.Pos, "expected number, got %s", src.Kind)
	}
	if math.Trunc(src.Num) != src.Num || src.Num < 0 {
		return projErr(src.Pos, "expected unsigned integer, got %v", src.Num)
	}
	n := uint64(src.Num)
	if dst.OverflowUint(n) || float64(n) != src.Num {
		return projErr(src.Pos, "number %v overflows %s", src.Num, dst.Type())
	}
	dst.SetUint(n)
	return nil
}

// assignMap projects a map literal with single-identifier keys into a Go
// map keyed by string.
func assignMap(src *Value, dst reflect.Value, warn func(msg string, args ...any)) error {
	if src.Kind != MapKind {
		return projErr(src.Pos, "expected map, got %s", src.Kind)
	}
	if dst.Type().Key().Kind() != reflect.String {
		return projErr(src.Pos, "cannot project into %s", dst.Type())
	}
	out := reflect.MakeMapWithSize(dst.Type(), len(src.Entries))
	for _, e := range src.Entries {
		if e.Key.Default || len(e.Key.Terms) != 1 || e.Key.Terms[0].Any || len(e.Key.Terms[0].Alts) != 1 {
			return projErr(e.Key.Pos, "map key %s is not a plain identifier", e.Key)
		}
		val := reflect.New(dst.Type().Elem()).Elem()
		if err := assign(e.Value, val, "", warn); err != nil {
			return err
		}
		out.SetMapIndex(reflect.ValueOf(e.Key.Terms[0].Alts[0]), val)
	}
	dst.Set(out)
	return nil
}
