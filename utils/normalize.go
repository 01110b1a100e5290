package utils

import (
	"reflect"
	"strings"
)

// NormalizeDTO trims string fields, drops blank entries from []string fields and rounds float64
// fields on a pointer-to-struct request DTO.
func NormalizeDTO(dto any) {
	v := reflect.ValueOf(dto)
	if v.Kind() != reflect.Ptr {
		return
	}
	s := v.Elem()
	if s.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case reflect.Float64:
			f.SetFloat(Round2(f.Float()))
		case reflect.Slice:
			if f.Type().Elem().Kind() != reflect.String || f.IsNil() {
				continue
			}
			kept := reflect.MakeSlice(f.Type(), 0, f.Len())
			for j := 0; j < f.Len(); j++ {
				item := strings.TrimSpace(f.Index(j).String())
				if item == "" {
					continue
				}
				kept = reflect.Append(kept, reflect.ValueOf(item).Convert(f.Type().Elem()))
			}
			f.Set(kept)
		}
	}
}
