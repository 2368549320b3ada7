// Package unpack decodes JSON into Go values whose interface-typed fields
// are resolved to concrete struct types by a discriminator field such as
// "kind".  Each concrete type registers itself with a struct tag of the
// form `unpack:""` (match the Go type name) or `unpack:"<value>"` on the
// discriminator field.
package unpack

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

const (
	tagJSON   = "json"
	tagUnpack = "unpack"
)

var (
	ErrTag      = errors.New(`unpack tag must have form "" or "<value>"`)
	ErrNeedJSON = errors.New("unpack tag cannot appear without a JSON tag")
	ErrNotPtr   = errors.New("unpack: result must be a non-nil pointer")
)

// Reflector maps discriminator values to the concrete types registered
// with New or Add.
type Reflector struct {
	keys  []string
	rules map[string]map[string]reflect.Type
}

func New(templates ...interface{}) *Reflector {
	r := &Reflector{rules: make(map[string]map[string]reflect.Type)}
	for _, t := range templates {
		r.Add(t)
	}
	return r
}

// Add registers the type of template under the value found in its unpack
// tag.  It panics if the type has no usable unpack tag since registration
// happens at package init.
func (r *Reflector) Add(template interface{}) *Reflector {
	typ := reflect.TypeOf(template)
	key, val, err := unpackRule(typ)
	if err != nil {
		panic(fmt.Sprintf("unpack: %s: %s", typ, err))
	}
	return r.add(typ, key, val)
}

// AddAs registers the type of template under the value val.
func (r *Reflector) AddAs(template interface{}, val string) *Reflector {
	typ := reflect.TypeOf(template)
	key, _, err := unpackRule(typ)
	if err != nil {
		panic(fmt.Sprintf("unpack: %s: %s", typ, err))
	}
	return r.add(typ, key, val)
}

func (r *Reflector) add(typ reflect.Type, key, val string) *Reflector {
	vals, ok := r.rules[key]
	if !ok {
		vals = make(map[string]reflect.Type)
		r.rules[key] = vals
		r.keys = append(r.keys, key)
	}
	vals[val] = typ
	return r
}

// Unmarshal decodes the JSON in b into the value pointed at by result.
func (r *Reflector) Unmarshal(b []byte, result interface{}) error {
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	var obj interface{}
	if err := d.Decode(&obj); err != nil {
		return err
	}
	return r.UnmarshalObject(obj, result)
}

// UnmarshalObject is like Unmarshal but takes the generic form produced by
// encoding/json (maps, slices, and scalars).
func (r *Reflector) UnmarshalObject(obj interface{}, result interface{}) error {
	v := reflect.ValueOf(result)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return ErrNotPtr
	}
	return r.decode(obj, v.Elem())
}

func (r *Reflector) lookup(m map[string]interface{}) (reflect.Type, error) {
	for _, key := range r.keys {
		val, ok := m[key].(string)
		if !ok {
			continue
		}
		if typ, ok := r.rules[key][val]; ok {
			return typ, nil
		}
		return nil, fmt.Errorf("unpack: no type registered for %s %q", key, val)
	}
	return nil, fmt.Errorf("unpack: JSON object has no discriminator field (one of %s)", strings.Join(r.keys, ", "))
}

func (r *Reflector) decode(obj interface{}, v reflect.Value) error {
	if obj == nil {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	switch v.Kind() {
	case reflect.Interface:
		m, ok := obj.(map[string]interface{})
		if !ok {
			if v.NumMethod() == 0 {
				v.Set(reflect.ValueOf(obj))
				return nil
			}
			return fmt.Errorf("unpack: cannot decode %T into %s", obj, v.Type())
		}
		typ, err := r.lookup(m)
		if err != nil {
			return err
		}
		ptr := reflect.New(typ)
		if err := r.decodeStruct(m, ptr.Elem()); err != nil {
			return err
		}
		if !ptr.Type().AssignableTo(v.Type()) {
			return fmt.Errorf("unpack: %s does not implement %s", ptr.Type(), v.Type())
		}
		v.Set(ptr)
	case reflect.Pointer:
		elem := reflect.New(v.Type().Elem())
		if err := r.decode(obj, elem.Elem()); err != nil {
			return err
		}
		v.Set(elem)
	case reflect.Struct:
		m, ok := obj.(map[string]interface{})
		if !ok {
			return fmt.Errorf("unpack: cannot decode %T into struct %s", obj, v.Type())
		}
		return r.decodeStruct(m, v)
	case reflect.Slice:
		list, ok := obj.([]interface{})
		if !ok {
			return fmt.Errorf("unpack: cannot decode %T into slice %s", obj, v.Type())
		}
		s := reflect.MakeSlice(v.Type(), len(list), len(list))
		for k, elem := range list {
			if err := r.decode(elem, s.Index(k)); err != nil {
				return err
			}
		}
		v.Set(s)
	case reflect.Map:
		m, ok := obj.(map[string]interface{})
		if !ok || v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("unpack: cannot decode %T into map %s", obj, v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), len(m))
		for key, elem := range m {
			ev := reflect.New(v.Type().Elem()).Elem()
			if err := r.decode(elem, ev); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(key).Convert(v.Type().Key()), ev)
		}
		v.Set(out)
	default:
		b, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, v.Addr().Interface())
	}
	return nil
}

func (r *Reflector) decodeStruct(m map[string]interface{}, v reflect.Value) error {
	typ := v.Type()
	for k := 0; k < typ.NumField(); k++ {
		field := typ.Field(k)
		if !field.IsExported() {
			continue
		}
		name, ok := jsonFieldName(field)
		if name == "-" {
			continue
		}
		if !ok && field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := r.decodeStruct(m, v.Field(k)); err != nil {
				return err
			}
			continue
		}
		if name == "" {
			name = field.Name
		}
		elem, ok := m[name]
		if !ok {
			continue
		}
		if err := r.decode(elem, v.Field(k)); err != nil {
			return fmt.Errorf("%s.%s: %w", typ.Name(), field.Name, err)
		}
	}
	return nil
}

func jsonFieldName(f reflect.StructField) (string, bool) {
	tag, ok := f.Tag.Lookup(tagJSON)
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	return name, true
}

// unpackRule finds the field carrying the unpack tag and returns its JSON
// name and the value to match.  JSON names must be unique within the
// struct since package json silently drops duplicates.
func unpackRule(typ reflect.Type) (string, string, error) {
	if typ.Kind() != reflect.Struct {
		return "", "", errors.New("cannot unpack into non-struct")
	}
	names := make(map[string]struct{})
	var key, val string
	for k := 0; k < typ.NumField(); k++ {
		field := typ.Field(k)
		jsonName, jsonOK := jsonFieldName(field)
		if jsonOK && jsonName != "-" {
			if _, ok := names[jsonName]; ok {
				return "", "", fmt.Errorf("json field tag %q in struct type %q not unique", jsonName, typ.Name())
			}
			names[jsonName] = struct{}{}
		}
		opt, ok := field.Tag.Lookup(tagUnpack)
		if !ok {
			continue
		}
		if !jsonOK {
			return "", "", ErrNeedJSON
		}
		if strings.Contains(opt, ",") {
			return "", "", ErrTag
		}
		if key != "" {
			return "", "", fmt.Errorf("unpack key appears twice (for JSON field %s and %s)", key, jsonName)
		}
		key = jsonName
		val = opt
		if val == "" {
			val = typ.Name()
		}
	}
	if key == "" {
		return "", "", errors.New("no unpack tag")
	}
	return key, val, nil
}
