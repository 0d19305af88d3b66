package weberr

import "errors"

type fielder interface {
	Fields() map[string]any
}

// Fields merges the log fields of every layer of err. Outer layers win on
// conflicting keys.
func Fields(err error) (fields map[string]any, ok bool) {
	for err != nil {
		var fe fielder
		if !errors.As(err, &fe) {
			break
		}
		if fields == nil {
			fields = make(map[string]any)
		}
		for k, v := range fe.Fields() {
			if _, set := fields[k]; !set {
				fields[k] = v
			}
		}
		layer, _ := fe.(error)
		err = errors.Unwrap(layer)
		ok = true
	}
	return fields, ok
}

type fieldsError struct {
	error
	fields map[string]any
}

func (e *fieldsError) Fields() map[string]any { return e.fields }

func (e *fieldsError) Unwrap() error { return e.error }
