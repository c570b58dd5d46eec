// Package toolguard implements tool-parameter validation and the
// approval-gating wrapper: it coerces loosely typed LLM tool-call
// arguments against a JSON schema, and wraps tools that require human
// approval with a synthetic pause-point tool call.
package toolguard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// MaxToolNameLength mirrors the teacher's tool-registry bound
// (internal/agent/tool_registry.go) to reject pathological tool names.
const MaxToolNameLength = 256

// MaxToolParamsSize mirrors the teacher's 10MB tool-argument bound.
const MaxToolParamsSize = 10 * 1024 * 1024

// ValidationResult is the outcome of ValidateToolParameters.
type ValidationResult struct {
	Valid         bool
	CorrectedArgs map[string]any
	Error         string
}

// minimalSchema is the reduced shape this package needs from a JSON
// schema document: required keys, and per-property type hints for
// coercion.
type minimalSchema struct {
	Required   []string                  `json:"required"`
	Properties map[string]map[string]any `json:"properties"`
}

// schemaCache memoizes compiled jsonschema.Schema values by their
// source document, mirroring the teacher's pluginsdk.compileSchema.
var schemaCache sync.Map

// compileSchema compiles and caches schemaJSON as a full JSON Schema,
// for strict post-coercion validation beyond minimalSchema's coercion
// rules (e.g. enum/pattern/min-max constraints).
func compileSchema(schemaJSON []byte) (*jsonschema.Schema, error) {
	key := string(schemaJSON)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// ValidateToolParameters validates and coerces args against schemaJSON:
//   - required keys must be present and non-empty,
//   - string → array coercion when the schema expects an array,
//   - string → number coercion when parseable,
//   - null/undefined optional fields are dropped,
//   - unknown keys pass through unchanged.
func ValidateToolParameters(args map[string]any, schemaJSON []byte, toolName string) ValidationResult {
	var schema minimalSchema
	if len(schemaJSON) > 0 {
		if err := json.Unmarshal(schemaJSON, &schema); err != nil {
			return ValidationResult{Valid: false, Error: fmt.Sprintf("%s: invalid schema: %v", toolName, err)}
		}
	}

	corrected := make(map[string]any, len(args))
	for k, v := range args {
		if v == nil {
			continue
		}
		corrected[k] = v
	}

	for prop, def := range schema.Properties {
		v, present := corrected[prop]
		if !present {
			continue
		}
		wantType, _ := def["type"].(string)
		switch wantType {
		case "array":
			if s, ok := v.(string); ok && s != "" {
				corrected[prop] = []any{s}
			}
		case "number", "integer":
			if s, ok := v.(string); ok {
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					corrected[prop] = f
				}
			}
		}
	}

	for _, req := range schema.Required {
		v, present := corrected[req]
		if !present {
			return ValidationResult{Valid: false, Error: fmt.Sprintf("%s: missing required parameter %q", toolName, req)}
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return ValidationResult{Valid: false, Error: fmt.Sprintf("%s: required parameter %q is empty", toolName, req)}
		}
	}

	if len(schemaJSON) > 0 {
		if compiled, err := compileSchema(schemaJSON); err == nil {
			if verr := compiled.Validate(toValidatable(corrected)); verr != nil {
				return ValidationResult{Valid: false, Error: fmt.Sprintf("%s: %v", toolName, verr)}
			}
		}
		// A schema that fails to compile under the full JSON Schema
		// grammar (e.g. one whose $ref cannot be resolved) still
		// gets the minimalSchema coercion/required-key checks above;
		// strict validation is best-effort on top of that.
	}

	return ValidationResult{Valid: true, CorrectedArgs: corrected}
}

// toValidatable round-trips corrected through encoding/json so that
// jsonschema.Validate sees the same number/array/object representation
// it would for a freshly decoded document, rather than Go-native types
// (e.g. int instead of float64) that can trip numeric schema checks.
func toValidatable(corrected map[string]any) any {
	raw, err := json.Marshal(corrected)
	if err != nil {
		return corrected
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return corrected
	}
	return v
}

// ApprovalRequired reports whether a tool's metadata marks it as
// requiring human approval before execution.
type ApprovalRequired interface {
	ApprovalRequired() bool
}

// WrapToolWithValidation returns a tool whose Execute first validates
// incoming arguments against inner's Schema(), then either delegates or,
// if inner requires approval, returns a StopProcessing result carrying a
// synthetic client.requestApproval redirect instead of running inner.
func WrapToolWithValidation(inner orchmodel.Tool) orchmodel.Tool {
	return &validatingTool{inner: inner}
}

type validatingTool struct {
	inner orchmodel.Tool
}

func (v *validatingTool) Name() string        { return v.inner.Name() }
func (v *validatingTool) Description() string { return v.inner.Description() }
func (v *validatingTool) Schema() []byte      { return v.inner.Schema() }

func (v *validatingTool) Execute(ctx context.Context, tc orchmodel.ToolContext, argsJSON []byte) (*orchmodel.ToolResult, error) {
	if len(argsJSON) > MaxToolParamsSize {
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: %s: arguments exceed maximum size", v.inner.Name())}, nil
	}
	var args map[string]any
	if len(argsJSON) > 0 {
		if err := json.Unmarshal(argsJSON, &args); err != nil {
			return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: %s: malformed arguments: %v", v.inner.Name(), err)}, nil
		}
	}

	result := ValidateToolParameters(args, v.inner.Schema(), v.inner.Name())
	if !result.Valid {
		return &orchmodel.ToolResult{IsError: true, Content: "Error: " + result.Error}, nil
	}

	if ar, ok := v.inner.(ApprovalRequired); ok && ar.ApprovalRequired() {
		return &orchmodel.ToolResult{
			StopProcessing:  true,
			ApprovalMessage: fmt.Sprintf("client.requestApproval: %s pending human approval", v.inner.Name()),
		}, nil
	}

	corrected, err := json.Marshal(result.CorrectedArgs)
	if err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: %s: re-encode arguments: %v", v.inner.Name(), err)}, nil
	}
	return v.inner.Execute(ctx, tc, corrected)
}
