package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ToolInvocationRequest is the body of POST /tools/run.
type ToolInvocationRequest struct {
	ToolID      string          `json:"tool_id" validate:"required,known_tool"`
	Inputs      json.RawMessage `json:"inputs" validate:"required,json_object"`
	JobTargetID string          `json:"job_target_id,omitempty" validate:"omitempty,parsable_uuid"`
}

// Validate checks the request. known reports whether a tool id is registered.
func (r *ToolInvocationRequest) Validate(known func(string) bool) error {
	validate := validator.New()
	if err := validate.RegisterValidation("known_tool", func(fl validator.FieldLevel) bool {
		return known != nil && known(fl.Field().String())
	}); err != nil {
		return err
	}
	if err := validate.RegisterValidation("json_object", isJSONObject); err != nil {
		return err
	}
	if err := validate.RegisterValidation("parsable_uuid", isParsableUUID); err != nil {
		return err
	}
	return validate.Struct(r)
}

// InputMap decodes Inputs. Call after Validate.
func (r *ToolInvocationRequest) InputMap() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(r.Inputs, &m); err != nil {
		return nil, fmt.Errorf("inputs must be a JSON object: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func isJSONObject(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.Slice {
		return false
	}
	raw := bytes.TrimSpace(f.Bytes())
	if len(raw) == 0 || raw[0] != '{' {
		return false
	}
	return json.Valid(raw)
}

// isParsableUUID accepts anything uuid.Parse does, in either case.
func isParsableUUID(fl validator.FieldLevel) bool {
	_, err := uuid.Parse(fl.Field().String())
	return err == nil
}

// ValidationMessage turns validator errors into a short client-facing reason.
func ValidationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", jsonName(fe.Field()))
	case "known_tool":
		return fmt.Sprintf("unknown tool_id %q", fe.Value())
	case "json_object":
		return "inputs must be a JSON object"
	case "parsable_uuid":
		return "job_target_id must be a valid UUID"
	default:
		return fmt.Sprintf("%s is invalid", jsonName(fe.Field()))
	}
}

func jsonName(field string) string {
	switch field {
	case "ToolID":
		return "tool_id"
	case "Inputs":
		return "inputs"
	case "JobTargetID":
		return "job_target_id"
	}
	return field
}
