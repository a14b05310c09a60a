// Package validate turns raw model output into a schema-conformant AnalysisContext.
// Extraction and a single repair pass are allowed; anything still malformed
// after that is rejected with a ValidationError naming the offending fragment.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"alphaseeker/pkg/core/utils"
	"alphaseeker/pkg/models"
)

// RequiredFields are the top-level keys every analysis payload must carry.
var RequiredFields = []string{"company_name", "radar_scores", "valuations", "master_views"}

const maxFragment = 512

// ValidationError reports why a payload was rejected.
type ValidationError struct {
	Reason   string
	Fragment string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid model output: %s", e.Reason)
}

// Unwrap lets callers match with errors.Is(err, models.ErrValidation).
func (e *ValidationError) Unwrap() error { return models.ErrValidation }

// Validator checks payloads against the AnalysisContext schema.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator whose error paths use JSON field names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate runs the full pipeline over raw model output:
// extract, strict parse, at most one repair pass, structural checks.
func (val *Validator) Validate(raw string) (*models.AnalysisContext, error) {
	payload, err := utils.ExtractPayload(raw)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error(), Fragment: truncate(raw)}
	}

	fields, err := decodeObject([]byte(payload))
	if err != nil {
		repaired, rerr := utils.RepairJSON(utils.SanitizeJSON(payload))
		if rerr != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("unrepairable JSON: %v", err), Fragment: truncate(payload)}
		}
		fields, err = decodeObject([]byte(repaired))
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("malformed JSON after repair: %v", err), Fragment: truncate(repaired)}
		}
		payload = repaired
	}

	return val.check(fields, payload)
}

// ValidateJSON runs the structural checks on an already-structured object.
// No extraction or repair is attempted.
func (val *Validator) ValidateJSON(data []byte) (*models.AnalysisContext, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed JSON: %v", err), Fragment: truncate(string(data))}
	}
	return val.check(fields, string(data))
}

// ValidateContext re-checks a typed context, e.g. one supplied by a caller for import.
func (val *Validator) ValidateContext(ctx *models.AnalysisContext) (*models.AnalysisContext, error) {
	if ctx == nil {
		return nil, &ValidationError{Reason: "empty analysis context"}
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("unencodable context: %v", err)}
	}
	return val.ValidateJSON(data)
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("payload is not a JSON object")
	}
	return fields, nil
}

func (val *Validator) check(fields map[string]json.RawMessage, payload string) (*models.AnalysisContext, error) {
	for _, name := range RequiredFields {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			return nil, &ValidationError{Reason: fmt.Sprintf("missing required field %q", name), Fragment: truncate(payload)}
		}
	}

	if err := checkScores(fields["radar_scores"]); err != nil {
		return nil, err
	}

	var ctx models.AnalysisContext
	if err := json.Unmarshal([]byte(payload), &ctx); err != nil {
		return nil, decodeFailure(fields, err)
	}

	if err := val.v.Struct(&ctx); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return nil, &ValidationError{Reason: err.Error()}
		}
		fe := verrs[0]
		path := fieldPath(fe.Namespace())
		reason := fmt.Sprintf("%s failed %q", path, fe.Tag())
		if fe.Param() != "" {
			reason = fmt.Sprintf("%s failed %q (%s)", path, fe.Tag(), fe.Param())
		}
		return nil, &ValidationError{Reason: reason, Fragment: truncate(string(fields[topLevel(path)]))}
	}

	return &ctx, nil
}

func checkScores(raw json.RawMessage) error {
	var scores map[string]json.RawMessage
	if err := json.Unmarshal(raw, &scores); err != nil || scores == nil {
		return &ValidationError{Reason: "radar_scores must be an object", Fragment: truncate(string(raw))}
	}

	known := make(map[string]bool, len(models.ScoreDimensions))
	for _, dim := range models.ScoreDimensions {
		known[dim] = true
		v, ok := scores[dim]
		if !ok || isNull(v) {
			return &ValidationError{Reason: fmt.Sprintf("radar_scores missing dimension %q", dim), Fragment: truncate(string(raw))}
		}
		var n models.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return &ValidationError{Reason: fmt.Sprintf("radar_scores.%s is not numeric", dim), Fragment: truncate(string(raw))}
		}
	}

	extra := make([]string, 0)
	for k := range scores {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return &ValidationError{Reason: fmt.Sprintf("radar_scores has unknown dimension %q", extra[0]), Fragment: truncate(string(raw))}
	}
	return nil
}

// decodeFailure pins a decode error to the first top-level field that fails on its own.
func decodeFailure(fields map[string]json.RawMessage, cause error) error {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		probe, err := json.Marshal(map[string]json.RawMessage{name: fields[name]})
		if err != nil {
			continue
		}
		var ctx models.AnalysisContext
		if err := json.Unmarshal(probe, &ctx); err != nil {
			return &ValidationError{Reason: fmt.Sprintf("%s: %v", name, err), Fragment: truncate(string(fields[name]))}
		}
	}
	return &ValidationError{Reason: cause.Error()}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if idx := strings.IndexByte(ns, '.'); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func topLevel(path string) string {
	if idx := strings.IndexAny(path, ".["); idx >= 0 {
		return path[:idx]
	}
	return path
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxFragment {
		return s
	}
	return string(r[:maxFragment]) + "..."
}
