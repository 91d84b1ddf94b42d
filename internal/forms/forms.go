// Package forms validates operator-submitted forms before anything is sent to the backend.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/visitorpass/desk/internal/models"
)

var (
	once     sync.Once
	validate *validator.Validate
	trans    ut.Translator
)

func setup() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
		if ts, ok := v.Interface().(models.Timestamp); ok {
			return ts.Time
		}
		return nil
	}, models.Timestamp{})

	translator := en.New()
	trans, _ = ut.New(translator, translator).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)
}

// FieldError is a problem with one form field, keyed by its JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors lists every invalid field of a form.
type Errors struct {
	Fields []FieldError
}

func (e *Errors) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "invalid form: " + strings.Join(msgs, "; ")
}

// Get returns the message for field, or "".
func (e *Errors) Get(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// Map returns field -> message.
func (e *Errors) Map() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Field] = f.Message
	}
	return m
}

// Validate checks v's `validate` tags. It returns nil or an *Errors sorted by field name.
func Validate(v any) error {
	once.Do(setup)
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	out := &Errors{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: fe.Translate(trans)})
	}
	sort.SliceStable(out.Fields, func(i, j int) bool { return out.Fields[i].Field < out.Fields[j].Field })
	return out
}
