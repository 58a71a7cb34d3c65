package forms

import (
	"errors"
	"sort"
	"strings"
)

// ErrorSet maps a draft field name to the message shown under that field.
// It is also the error Submit returns when validation fails.
type ErrorSet map[string]string

// Add records msg for field unless the field already has a message.
func (e ErrorSet) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

func (e ErrorSet) Has(field string) bool {
	_, ok := e[field]
	return ok
}

func (e ErrorSet) Fields() []string {
	out := make([]string, 0, len(e))
	for f := range e {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (e ErrorSet) Error() string {
	return "invalid fields: " + strings.Join(e.Fields(), ", ")
}

func (e ErrorSet) clone() ErrorSet {
	out := make(ErrorSet, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

var (
	ErrSubmitInFlight = errors.New("forms: a submission is already in flight")
	ErrUnknownField   = errors.New("forms: unknown field")
	ErrUnknownOption  = errors.New("forms: unknown option")
)
