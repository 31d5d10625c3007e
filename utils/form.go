package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"goimomi/models"

	"gorm.io/datatypes"
)

var (
	dateType = reflect.TypeOf(models.Date{})
	jsonType = reflect.TypeOf(datatypes.JSON{})
	timeType = reflect.TypeOf(time.Time{})
)

// serverManaged reports fields the database or the handlers set, such as
// created_at and last_login. Form values for them are ignored.
func serverManaged(t reflect.Type) bool {
	return t == timeType || (t.Kind() == reflect.Pointer && t.Elem() == timeType)
}

// jsonName returns the wire name of a struct field, or "" when it is not on the wire.
func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("json")
	name := strings.SplitN(tag, ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// DecodeForm copies multipart/urlencoded values onto the matching fields of
// dst (a struct pointer), keyed by json name. Keys absent from the form leave
// the field alone, as do timestamp fields. skip lists keys handled by the caller.
func DecodeForm(values map[string][]string, dst any, skip ...string) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("DecodeForm: want struct pointer, got %T", dst)
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		name := jsonName(rt.Field(i))
		if name == "" || Contains(skip, name) || serverManaged(rt.Field(i).Type) {
			continue
		}
		vals, ok := values[name]
		if !ok || len(vals) == 0 {
			continue
		}
		if err := setFromString(rv.Field(i), strings.TrimSpace(vals[0])); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func setFromString(field reflect.Value, raw string) error {
	switch field.Type() {
	case dateType:
		d, err := models.ParseDate(raw)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(d))
		return nil
	case jsonType:
		if raw == "" {
			field.Set(reflect.Zero(jsonType))
			return nil
		}
		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("invalid JSON")
		}
		field.Set(reflect.ValueOf(datatypes.JSON(raw)))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if raw == "" {
			field.SetInt(0)
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if raw == "" {
			field.SetUint(0)
			return nil
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		if raw == "" {
			field.SetFloat(0)
			return nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", raw)
		}
		field.SetFloat(f)
	case reflect.Pointer:
		if raw == "" || raw == "null" {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		elem := reflect.New(field.Type().Elem())
		if err := setFromString(elem.Elem(), raw); err != nil {
			return err
		}
		field.Set(elem)
	default:
		return fmt.Errorf("unsupported form field type %s", field.Type())
	}
	return nil
}

// SetField assigns value to the field of dst whose json name is name.
func SetField(dst any, name string, value any) bool {
	rv := reflect.ValueOf(dst).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if jsonName(rt.Field(i)) != name {
			continue
		}
		v := reflect.ValueOf(value)
		if !v.Type().AssignableTo(rv.Field(i).Type()) {
			return false
		}
		rv.Field(i).Set(v)
		return true
	}
	return false
}

// FieldString reads a string field of src by json name.
func FieldString(src any, name string) string {
	rv := reflect.Indirect(reflect.ValueOf(src))
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if jsonName(rt.Field(i)) == name && rv.Field(i).Kind() == reflect.String {
			return rv.Field(i).String()
		}
	}
	return ""
}

// IDOf reads the ID field of a model.
func IDOf(model any) uint {
	rv := reflect.Indirect(reflect.ValueOf(model))
	f := rv.FieldByName("ID")
	if !f.IsValid() || f.Kind() != reflect.Uint {
		return 0
	}
	return uint(f.Uint())
}

// SetID overwrites the ID field of a model pointer.
func SetID(model any, id uint) {
	f := reflect.ValueOf(model).Elem().FieldByName("ID")
	if f.IsValid() && f.CanSet() && f.Kind() == reflect.Uint {
		f.SetUint(uint64(id))
	}
}
