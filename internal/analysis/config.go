package analysis

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultLabel is the label merge requests are selected by when none is given.
const DefaultLabel = "NashTech"

// Config describes one analysis run. It carries no environment lookups: the
// caller fills it from flags, files or a request payload.
type Config struct {
	BaseURL         string `json:"base_url" validate:"required,url"`
	ProjectID       string `json:"project_id" validate:"required"`
	Token           string `json:"token" validate:"required"`
	MRIIDs          []int  `json:"mr_iids,omitempty" validate:"omitempty,dive,gt=0"`
	Label           string `json:"label" validate:"required"`
	IncludeSnippets bool   `json:"include_snippets"`
	SnippetContext  int    `json:"snippet_context" validate:"gte=0,lte=50"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the invariants of c.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		return fmt.Errorf("invalid configuration: %w", FormatValidationErrors(verrs))
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

// FormatValidationErrors turns validator errors into one readable error.
func FormatValidationErrors(errs validator.ValidationErrors) error {
	var s strings.Builder
	for i, e := range errs {
		if i > 0 {
			s.WriteString("; ")
		}
		switch e.Tag() {
		case "required":
			s.WriteString(fmt.Sprintf("%s is required", e.Field()))
		case "url":
			s.WriteString(fmt.Sprintf("%s must be an absolute URL", e.Field()))
		case "gt":
			s.WriteString(fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param()))
		default:
			s.WriteString(fmt.Sprintf("%s failed on the '%s' tag", e.Field(), e.Tag()))
		}
	}
	return fmt.Errorf("%s", s.String())
}
