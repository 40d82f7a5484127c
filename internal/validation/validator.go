// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package validation wraps go-playground/validator v10 with a shared,
// lazily built instance and readable error messages.
//
// Field names in errors come from the koanf tag when present (so config
// errors read "poll.interval", not "Interval") and from the query tag for
// admin API requests.
//
//	type SearchRequest struct {
//	    Query string `query:"q" validate:"required,max=100"`
//	}
//	if err := validation.ValidateStruct(&req); err != nil { ... }
//
// Custom tags:
//   - snowflake: a Discord ID (17 to 20 decimal digits)
//   - gql_hash: a 64 character lowercase hex persisted query hash
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	snowflakePattern = regexp.MustCompile(`^[0-9]{17,20}$`)
	gqlHashPattern   = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   interface{}
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// Errors collects every failed rule of one struct.
type Errors struct {
	fields []FieldError
}

// Fields returns the individual failures.
func (ve *Errors) Fields() []FieldError {
	return ve.fields
}

func (ve *Errors) Error() string {
	if len(ve.fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve.fields))
	for i, f := range ve.fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// GetValidator returns the shared validator.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)
		mustRegister("snowflake", func(fl validator.FieldLevel) bool {
			return snowflakePattern.MatchString(fl.Field().String())
		})
		mustRegister("gql_hash", func(fl validator.FieldLevel) bool {
			return gqlHashPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// fieldName prefers the koanf tag, then the query tag, then the Go name.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"koanf", "query"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// ValidateStruct validates s. It returns nil or *Errors.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Errors{fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{
			Field:   namespace(fe),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: translate(fe),
		}
	}
	return &Errors{fields: out}
}

// ValidateVar validates a single value against tag.
func ValidateVar(field interface{}, tag string) error {
	return GetValidator().Var(field, tag)
}

// namespace drops the root struct name: "Config.poll.interval" -> "poll.interval".
func namespace(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

var messages = map[string]string{
	"required":      "%s is required",
	"url":           "%s must be a valid URL",
	"hostname_port": "%s must be host:port",
	"snowflake":     "%s must be a Discord ID",
	"gql_hash":      "%s must be a 64 character hex hash",
}

var messagesWithParam = map[string]string{
	"oneof":           "%s must be one of: %s",
	"gte":             "%s must be greater than or equal to %s",
	"lte":             "%s must be less than or equal to %s",
	"gt":              "%s must be greater than %s",
	"lt":              "%s must be less than %s",
	"required_unless": "%s is required unless %s",
}

func translate(fe validator.FieldError) string {
	field := namespace(fe)
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
