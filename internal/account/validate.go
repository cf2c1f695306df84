package account

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ghaggin/accountconsole/internal/gateway"
	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

func newValidator(region string) *validator.Validate {
	v := validator.New()

	// report fields under the names the backend uses
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return validMobile(fl.Field().String(), region)
	})

	return v
}

func validMobile(s, region string) bool {
	num, err := phonenumbers.Parse(s, region)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// check runs struct validation and converts failures into the same error
// shape the backend produces for a rejected form.
func (c *Client) check(op string, form any) error {
	err := c.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	gerr := &gateway.Error{
		Kind:   gateway.ValidationFailed,
		Method: "VALIDATE",
		Path:   op,
		Fields: map[string][]string{},
	}
	for _, fe := range verrs {
		gerr.Fields[fe.Field()] = append(gerr.Fields[fe.Field()], fieldMessage(fe))
	}
	return gerr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "mobile":
		return "Enter a valid mobile number."
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	default:
		return "Invalid value."
	}
}
