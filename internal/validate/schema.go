package validate

import (
	"errors"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/akave-ai/quoteedge/internal/apperr"
)

// Values holds coerced fields. Absent optional fields have no key.
type Values map[string]any

// Int returns the named field when it was present and coerced to an int.
func (v Values) Int(name string) (int, bool) {
	n, ok := v[name].(int)
	return n, ok
}

func (v Values) String(name string) (string, bool) {
	s, ok := v[name].(string)
	return s, ok
}

// ValuesSchema describes string-keyed request parts: query and path params.
type ValuesSchema interface {
	ParseValues(values url.Values) (Values, []apperr.Issue)
}

// BodySchema describes the request body.
type BodySchema interface {
	// ParseBody returns *apperr.Error of KindValidation for schema
	// violations; any other error is forwarded unchanged.
	ParseBody(c echo.Context) (any, error)
}

// Fields maps field names to rules. Unknown fields are ignored.
type Fields map[string]Rule

func (f Fields) ParseValues(values url.Values) (Values, []apperr.Issue) {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(Values, len(f))
	var issues []apperr.Issue
	for _, name := range names {
		rule := f[name]
		raw, present := values[name]
		if !present || len(raw) == 0 {
			if !isOptional(rule) {
				issues = append(issues, apperr.Issue{Path: name, Message: "Required"})
			}
			continue
		}
		v, err := rule.Coerce(raw)
		if err != nil {
			issues = append(issues, apperr.Issue{Path: name, Message: err.Error()})
			continue
		}
		out[name] = v
	}
	return out, issues
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

type structSchema[T any] struct{}

// Struct decodes the JSON body into a new T and checks its `validate` tags.
func Struct[T any]() BodySchema {
	return structSchema[T]{}
}

func (structSchema[T]) ParseBody(c echo.Context) (any, error) {
	v := new(T)
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return nil, err
	}
	if err := structValidator.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		issues := make([]apperr.Issue, 0, len(verrs))
		for _, fe := range verrs {
			issues = append(issues, apperr.Issue{Path: fieldPath(fe.Namespace()), Message: fieldMessage(fe)})
		}
		sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
		return nil, apperr.Validation(issues)
	}
	return v, nil
}

// fieldPath turns "createReq.items[0].name" into "items.0.name".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	ns = strings.ReplaceAll(ns, "[", ".")
	return strings.ReplaceAll(ns, "]", "")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min", "gte":
		return "Must be at least " + fe.Param()
	case "max", "lte":
		return "Must be at most " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "email":
		return "Invalid email"
	case "url":
		return "Invalid url"
	default:
		return "Failed on the '" + fe.Tag() + "' rule"
	}
}
