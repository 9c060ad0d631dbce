package domain

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	appErrors "workbench-backend/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Report JSON names in error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("workitemtype", func(fl validator.FieldLevel) bool {
			return WorkItemType(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation("workitemstatus", func(fl validator.FieldLevel) bool {
			return Status(fl.Field().String()).Valid()
		})
	})
	return validate
}

// ValidateStruct applies the struct tag rules of v and returns a Validation
// error naming every failing field.
func ValidateStruct(v any) error {
	return validationError(structValidator().Struct(v))
}

// ValidateStructExcept is ValidateStruct with the named Go fields skipped.
func ValidateStructExcept(v any, fields ...string) error {
	return validationError(structValidator().StructExcept(v, fields...))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return appErrors.NewValidation(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return appErrors.NewValidation(strings.Join(msgs, "; "))
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "workitemtype":
		return fmt.Sprintf("%s: unknown work item type %q", field, fe.Value())
	case "workitemstatus":
		return fmt.Sprintf("%s: unknown work item status %q", field, fe.Value())
	case "gt", "gte":
		return fmt.Sprintf("%s must be %s %s", field, map[string]string{"gt": ">", "gte": ">="}[fe.Tag()], fe.Param())
	case "max":
		return fmt.Sprintf("%s exceeds maximum length %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// ValidateWorkItem checks the enumerations, the custom fields against the
// type catalog and, when parentType is known, the parent/child type rule.
// An empty parentType with a non-zero ParentID skips the parent check.
func ValidateWorkItem(wi WorkItem, parentType WorkItemType) error {
	if err := ValidateWorkItemFields(wi); err != nil {
		return err
	}
	if wi.IsTopLevel() || parentType == "" {
		return nil
	}
	return ValidateParentType(wi.Type, parentType)
}

// ValidateWorkItemFields checks everything ValidateWorkItem checks except
// the type of an existing parent, so it needs no stored state. Fields named
// in skip are left out of the struct rules.
func ValidateWorkItemFields(wi WorkItem, skip ...string) error {
	if err := ValidateStructExcept(wi, skip...); err != nil {
		return err
	}
	if err := ValidateCustomFields(wi.Type, wi.CustomFields); err != nil {
		return err
	}
	if wi.IsTopLevel() && !wi.Type.AllowsParent("") {
		return appErrors.NewValidationf("%s work items cannot be top level", wi.Type)
	}
	return nil
}

// ValidateParentType checks that a t work item may sit under a parentType one.
func ValidateParentType(t, parentType WorkItemType) error {
	if !t.AllowsParent(parentType) {
		return appErrors.NewValidationf("%s work items cannot be children of %s", t, parentType)
	}
	return nil
}

// ValidateCustomFields checks fields against the definitions of t. Fields
// not declared by the type are rejected.
func ValidateCustomFields(t WorkItemType, fields map[string]any) error {
	info, ok := t.Info()
	if !ok {
		return appErrors.NewValidationf("unknown work item type %q", t)
	}

	declared := make(map[string]FieldDef, len(info.CustomFields))
	for _, def := range info.CustomFields {
		declared[def.Name] = def
		value, present := fields[def.Name]
		if !present || isBlank(value) {
			if def.Required {
				return appErrors.NewValidationf("custom field %s is required for %s", def.Name, t)
			}
			continue
		}
		if def.Kind == FieldNumber && !isNumber(value) {
			return appErrors.NewValidationf("custom field %s must be a number", def.Name)
		}
		if len(def.Values) > 0 && !contains(def.Values, FormatFieldValue(value)) {
			return appErrors.NewValidationf("custom field %s must be one of %s", def.Name, strings.Join(def.Values, ", "))
		}
	}

	for name := range fields {
		if _, ok := declared[name]; !ok {
			return appErrors.NewValidationf("custom field %s is not defined for %s", name, t)
		}
	}
	return nil
}

// FormatFieldValue renders a custom field value for comparison and display.
func FormatFieldValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}

func isBlank(v any) bool {
	return v == nil || FormatFieldValue(v) == ""
}

func isNumber(v any) bool {
	switch x := v.(type) {
	case int, int32, int64, float32, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(x, 64)
		return err == nil
	default:
		return false
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
