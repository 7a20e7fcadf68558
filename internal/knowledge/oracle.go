package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"maml/internal/formula"
	"maml/internal/llm"
	"maml/internal/logging"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SchemaHinter lets a response type describe its own JSON shape to the oracle.
type SchemaHinter interface {
	SchemaHint() string
}

// Oracle implements KnowledgeBase on an llm.Client.
type Oracle struct {
	client llm.Client
}

// NewOracle creates an oracle over the given LLM client.
func NewOracle(client llm.Client) *Oracle {
	return &Oracle{client: client}
}

// AskChoice implements KnowledgeBase. The answer is snake_cased and compared with
// the snake_cased allowed values; the matching allowed value is returned verbatim.
func (o *Oracle) AskChoice(ctx context.Context, text, instruction, field string, allowed []string) (string, error) {
	if len(allowed) == 0 {
		return "", fmt.Errorf("knowledge: choice %q has no allowed values", field)
	}
	logging.KnowledgeDebug("AskChoice: field=%s choices=%d text_len=%d", field, len(allowed), len(text))

	system := fmt.Sprintf(choiceSystemPrompt, field)
	user := fmt.Sprintf(choiceUserPrompt, instruction, field, strings.Join(allowed, ", "), text)
	raw, obj, err := o.askObject(ctx, "choice", system, user)
	if err != nil {
		return "", err
	}

	val, ok := obj[field]
	if !ok {
		return "", &MalformedResponseError{Query: "choice", Field: field, Reason: "missing key", Raw: raw}
	}
	var answer string
	if err := json.Unmarshal(val, &answer); err != nil {
		return "", &MalformedResponseError{Query: "choice", Field: field, Reason: "value is not a string", Raw: raw}
	}

	token := SnakeCase(answer)
	for _, a := range allowed {
		if SnakeCase(a) == token {
			logging.Knowledge("AskChoice: %s -> %s", field, a)
			return a, nil
		}
	}
	return "", &MalformedResponseError{
		Query:  "choice",
		Field:  field,
		Reason: fmt.Sprintf("%q is not one of [%s]", answer, strings.Join(allowed, ", ")),
		Raw:    raw,
	}
}

// AskStructured implements KnowledgeBase. out must be a non-nil pointer; struct
// targets are validated with their `validate` tags.
func (o *Oracle) AskStructured(ctx context.Context, text, instruction string, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("knowledge: AskStructured needs a non-nil pointer, got %T", out)
	}
	hint := schemaHint(out)
	logging.KnowledgeDebug("AskStructured: schema=%s text_len=%d", hint, len(text))

	system := fmt.Sprintf(structuredSystemPrompt, hint)
	user := fmt.Sprintf(structuredUserPrompt, instruction, text)
	raw, err := o.client.CompleteWithSystem(ctx, system, user)
	if err != nil {
		return fmt.Errorf("knowledge: structured query: %w", err)
	}

	if err := decodeInto(raw, out); err != nil {
		return &MalformedResponseError{Query: "structured", Reason: "cannot decode", Raw: raw, Err: err}
	}
	if err := validateValue(out); err != nil {
		return &MalformedResponseError{Query: "structured", Field: failedField(err), Reason: "validation failed", Raw: raw, Err: err}
	}
	return nil
}

type textAnswer struct {
	Text string `json:"text" validate:"required"`
}

// AskText implements KnowledgeBase.
func (o *Oracle) AskText(ctx context.Context, text, instruction string) (string, error) {
	logging.KnowledgeDebug("AskText: text_len=%d", len(text))

	raw, err := o.client.CompleteWithSystem(ctx, textSystemPrompt, fmt.Sprintf(textUserPrompt, instruction, text))
	if err != nil {
		return "", fmt.Errorf("knowledge: text query: %w", err)
	}
	var ans textAnswer
	if err := decodeInto(raw, &ans); err != nil {
		return "", &MalformedResponseError{Query: "text", Reason: "cannot decode", Raw: raw, Err: err}
	}
	ans.Text = strings.TrimSpace(ans.Text)
	if err := validate.Struct(ans); err != nil {
		return "", &MalformedResponseError{Query: "text", Field: "text", Reason: "empty answer", Raw: raw}
	}
	return ans.Text, nil
}

// AskFormula implements KnowledgeBase. The returned formula is checked for shape:
// matching function name, input_product_amount declared, parameters drawn from
// the request. Expression safety is checked by formula.Compile.
func (o *Oracle) AskFormula(ctx context.Context, req FormulaRequest) (formula.Formula, error) {
	logging.KnowledgeDebug("AskFormula: %s params=%v", req.FunctionName, req.ParameterNames())

	params, _ := json.Marshal(req.Parameters)
	user := fmt.Sprintf(formulaUserPrompt, req.FunctionName, req.StepType, req.StepDescription, req.OutputName, req.OutputUnit, string(params))
	raw, err := o.client.CompleteWithSystem(ctx, formulaSystemPrompt, user)
	if err != nil {
		return formula.Formula{}, fmt.Errorf("knowledge: formula query: %w", err)
	}

	var f formula.Formula
	if err := decodeInto(raw, &f); err != nil {
		return formula.Formula{}, &MalformedResponseError{Query: "formula", Reason: "cannot decode", Raw: raw, Err: err}
	}
	if err := validate.Struct(f); err != nil {
		return formula.Formula{}, &MalformedResponseError{Query: "formula", Field: failedField(err), Reason: "validation failed", Raw: raw, Err: err}
	}
	if err := CheckFormulaShape(req, f); err != nil {
		return formula.Formula{}, &MalformedResponseError{Query: "formula", Reason: err.Error(), Raw: raw}
	}
	logging.Knowledge("AskFormula: %s = %s", f.FunctionName, f.Expression)
	return f, nil
}

// CheckFormulaShape verifies a formula answers the request it was produced for.
func CheckFormulaShape(req FormulaRequest, f formula.Formula) error {
	if f.FunctionName != req.FunctionName {
		return fmt.Errorf("function_name %q, want %q", f.FunctionName, req.FunctionName)
	}
	requested := make(map[string]bool, len(req.Parameters))
	for _, p := range req.Parameters {
		requested[p.Name] = true
	}
	hasInput := false
	for _, p := range f.Parameters {
		if !requested[p] {
			return fmt.Errorf("parameter %q was not requested", p)
		}
		if p == InputProductAmount {
			hasInput = true
		}
	}
	if !hasInput {
		return fmt.Errorf("parameters must include %s", InputProductAmount)
	}
	return nil
}

// InputProductAmount is the chained input parameter every step formula takes.
const InputProductAmount = "input_product_amount"

func (o *Oracle) askObject(ctx context.Context, query, system, user string) (string, map[string]json.RawMessage, error) {
	raw, err := o.client.CompleteWithSystem(ctx, system, user)
	if err != nil {
		return "", nil, fmt.Errorf("knowledge: %s query: %w", query, err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(llm.CleanJSONResponse(raw)), &obj); err != nil {
		return raw, nil, &MalformedResponseError{Query: query, Reason: "not a JSON object", Raw: raw, Err: err}
	}
	return raw, obj, nil
}

func decodeInto(raw string, out any) error {
	return json.Unmarshal([]byte(llm.CleanJSONResponse(raw)), out)
}

func validateValue(out any) error {
	v := reflect.ValueOf(out)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(v.Interface())
}

func failedField(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return verrs[0].Field()
	}
	return ""
}

// schemaHint renders the JSON shape of out from its json tags, e.g.
// { 'output_name': str, 'output_unit': str }.
func schemaHint(out any) string {
	if h, ok := out.(SchemaHinter); ok {
		return h.SchemaHint()
	}
	return typeHint(reflect.TypeOf(out))
}

func typeHint(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "str"
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "List[" + typeHint(t.Elem()) + "]"
	case reflect.Map:
		return "Dict[str, " + typeHint(t.Elem()) + "]"
	case reflect.Struct:
		if reflect.PointerTo(t).Implements(reflect.TypeOf((*SchemaHinter)(nil)).Elem()) {
			return reflect.New(t).Interface().(SchemaHinter).SchemaHint()
		}
		var parts []string
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := strings.Split(f.Tag.Get("json"), ",")[0]
			if name == "-" {
				continue
			}
			if name == "" {
				name = f.Name
			}
			parts = append(parts, fmt.Sprintf("'%s': %s", name, typeHint(f.Type)))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return "any"
	}
}
