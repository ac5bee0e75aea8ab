package executors

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
	"github.com/zapflow/zapflow/pkg/template"
)

// Condition strategy names accepted in node data.
const (
	ConditionTypeText       = "text"
	ConditionTypeNumber     = "number"
	ConditionTypeRegex      = "regex"
	ConditionTypeIntent     = "intent"
	ConditionTypeExpression = "expression"
)

const defaultConditionInput = "{{inbound.content}}"

const intentSystemPrompt = `You classify whether a user message matches an intent.
Answer with exactly "yes" or "no" and nothing else.`

// ConditionExecutor evaluates the node's condition against the execution
// context and selects the "true" or "false" branch handle.
//
// A condition node always produces a branch. Unknown strategies and
// evaluation failures select "false" and surface as a step warning,
// never as an execution error.
type ConditionExecutor struct {
	completer protocol.ChatCompleter
}

func NewConditionExecutor(completer protocol.ChatCompleter) *ConditionExecutor {
	return &ConditionExecutor{completer: completer}
}

func (e *ConditionExecutor) Execute(ctx context.Context, node *models.FlowNode, execContext map[string]any) (protocol.ExecutionResult, error) {
	conditionType, _ := node.Data["conditionType"].(string)
	condition, _ := node.Data["condition"].(string)

	input, _ := node.Data["input"].(string)
	if input == "" {
		input = defaultConditionInput
	}

	input = template.Render(input, execContext)

	matched, err := e.evaluate(ctx, conditionType, condition, input, execContext)

	result := protocol.ExecutionResult{
		SelectedHandle: models.HandleFalse,
		Output: map[string]any{
			"condition_result": matched,
			"condition_type":   conditionType,
		},
	}

	if err != nil {
		result.Warning = fmt.Sprintf("condition evaluation failed, taking false branch: %v", err)

		return result, nil
	}

	if matched {
		result.SelectedHandle = models.HandleTrue
	}

	return result, nil
}

func (e *ConditionExecutor) evaluate(ctx context.Context, conditionType, condition, input string, execContext map[string]any) (bool, error) {
	switch conditionType {
	case ConditionTypeText:
		return strings.Contains(strings.ToLower(input), strings.ToLower(condition)), nil
	case ConditionTypeNumber:
		return evaluateNumber(input, condition)
	case ConditionTypeRegex:
		return evaluateRegex(input, condition)
	case ConditionTypeIntent:
		return e.evaluateIntent(ctx, input, condition)
	case ConditionTypeExpression:
		return evaluateExpression(condition, input, execContext)
	default:
		return false, fmt.Errorf("unknown condition type %q", conditionType)
	}
}

// evaluateNumber compares the numeric input against the condition, which is
// an operator followed by a number, e.g. ">= 10" or "== 3". A bare number
// means equality.
func evaluateNumber(input, condition string) (bool, error) {
	left, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return false, fmt.Errorf("input %q is not a number", input)
	}

	operator := "=="
	operand := strings.TrimSpace(condition)

	for _, candidate := range []string{">=", "<=", "!=", "==", ">", "<"} {
		if strings.HasPrefix(operand, candidate) {
			operator = candidate
			operand = strings.TrimSpace(operand[len(candidate):])

			break
		}
	}

	right, err := strconv.ParseFloat(operand, 64)
	if err != nil {
		return false, fmt.Errorf("condition %q is not a numeric comparison", condition)
	}

	switch operator {
	case ">":
		return left > right, nil
	case ">=":
		return left >= right, nil
	case "<":
		return left < right, nil
	case "<=":
		return left <= right, nil
	case "!=":
		return left != right, nil
	default:
		return left == right, nil
	}
}

func evaluateRegex(input, condition string) (bool, error) {
	matcher, err := regexp.Compile(condition)
	if err != nil {
		return false, fmt.Errorf("invalid condition pattern: %w", err)
	}

	return matcher.MatchString(input), nil
}

func (e *ConditionExecutor) evaluateIntent(ctx context.Context, input, condition string) (bool, error) {
	if e.completer == nil {
		return false, fmt.Errorf("no chat completer configured for intent conditions")
	}

	userContent := fmt.Sprintf("Intent: %s\nMessage: %s", condition, input)

	answer, err := e.completer.Complete(ctx, intentSystemPrompt, userContent)
	if err != nil {
		return false, fmt.Errorf("intent evaluation failed: %w", err)
	}

	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "yes"), nil
}

// evaluateExpression runs the condition as a JavaScript predicate. The
// execution context is exposed as `context` and the resolved input as
// `input`; the script's final value is coerced to a boolean.
func evaluateExpression(condition, input string, execContext map[string]any) (bool, error) {
	if strings.TrimSpace(condition) == "" {
		return false, fmt.Errorf("empty expression")
	}

	vm := goja.New()

	err := vm.Set("context", execContext)
	if err != nil {
		return false, fmt.Errorf("failed to bind context: %w", err)
	}

	err = vm.Set("input", input)
	if err != nil {
		return false, fmt.Errorf("failed to bind input: %w", err)
	}

	value, err := vm.RunString(condition)
	if err != nil {
		return false, fmt.Errorf("expression failed: %w", err)
	}

	return value.ToBoolean(), nil
}
