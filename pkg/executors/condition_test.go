package executors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/pkg/adapters/mock"
	"github.com/zapflow/zapflow/pkg/models"
)

func conditionNode(data map[string]any) *models.FlowNode {
	return &models.FlowNode{
		NodeID: "cond-1",
		Type:   models.NodeTypeCondition,
		Data:   data,
	}
}

func messageContext(content string) map[string]any {
	return map[string]any{
		"inbound": map[string]any{"content": content},
	}
}

func TestConditionExecutor_Text(t *testing.T) {
	t.Parallel()

	executor := NewConditionExecutor(nil)

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"match selects true branch", "preciso de ajuda", models.HandleTrue},
		{"match is case insensitive", "AJUDA por favor", models.HandleTrue},
		{"no match selects false branch", "bom dia", models.HandleFalse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node := conditionNode(map[string]any{
				"conditionType": ConditionTypeText,
				"condition":     "ajuda",
			})

			result, err := executor.Execute(context.Background(), node, messageContext(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.SelectedHandle)
			assert.Empty(t, result.Warning)
		})
	}
}

func TestConditionExecutor_Number(t *testing.T) {
	t.Parallel()

	executor := NewConditionExecutor(nil)

	tests := []struct {
		name      string
		input     string
		condition string
		expected  string
	}{
		{"greater than", "12", "> 10", models.HandleTrue},
		{"not greater than", "7", "> 10", models.HandleFalse},
		{"bare number means equality", "3", "3", models.HandleTrue},
		{"not equal", "3", "!= 3", models.HandleFalse},
		{"less or equal", "10", "<= 10", models.HandleTrue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node := conditionNode(map[string]any{
				"conditionType": ConditionTypeNumber,
				"condition":     tt.condition,
				"input":         "{{order.total}}",
			})

			execContext := map[string]any{
				"order": map[string]any{"total": tt.input},
			}

			result, err := executor.Execute(context.Background(), node, execContext)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.SelectedHandle)
		})
	}
}

func TestConditionExecutor_NumberNonNumericInputWarns(t *testing.T) {
	t.Parallel()

	executor := NewConditionExecutor(nil)
	node := conditionNode(map[string]any{
		"conditionType": ConditionTypeNumber,
		"condition":     "> 10",
	})

	result, err := executor.Execute(context.Background(), node, messageContext("not a number"))
	require.NoError(t, err)
	assert.Equal(t, models.HandleFalse, result.SelectedHandle)
	assert.NotEmpty(t, result.Warning)
}

func TestConditionExecutor_Regex(t *testing.T) {
	t.Parallel()

	executor := NewConditionExecutor(nil)
	node := conditionNode(map[string]any{
		"conditionType": ConditionTypeRegex,
		"condition":     `^\d{5}-?\d{3}$`,
	})

	result, err := executor.Execute(context.Background(), node, messageContext("01310-100"))
	require.NoError(t, err)
	assert.Equal(t, models.HandleTrue, result.SelectedHandle)

	result, err = executor.Execute(context.Background(), node, messageContext("rua augusta"))
	require.NoError(t, err)
	assert.Equal(t, models.HandleFalse, result.SelectedHandle)
}

func TestConditionExecutor_RegexInvalidPatternWarns(t *testing.T) {
	t.Parallel()

	executor := NewConditionExecutor(nil)
	node := conditionNode(map[string]any{
		"conditionType": ConditionTypeRegex,
		"condition":     `[unclosed`,
	})

	result, err := executor.Execute(context.Background(), node, messageContext("anything"))
	require.NoError(t, err)
	assert.Equal(t, models.HandleFalse, result.SelectedHandle)
	assert.NotEmpty(t, result.Warning)
}

func TestConditionExecutor_Intent(t *testing.T) {
	t.Parallel()

	node := conditionNode(map[string]any{
		"conditionType": ConditionTypeIntent,
		"condition":     "user wants to talk to a human",
	})

	executor := NewConditionExecutor(mock.NewCompleter("yes"))

	result, err := executor.Execute(context.Background(), node, messageContext("me passa um atendente"))
	require.NoError(t, err)
	assert.Equal(t, models.HandleTrue, result.SelectedHandle)

	executor = NewConditionExecutor(mock.NewCompleter("no"))

	result, err = executor.Execute(context.Background(), node, messageContext("qual o horário de vocês?"))
	require.NoError(t, err)
	assert.Equal(t, models.HandleFalse, result.SelectedHandle)
}

func TestConditionExecutor_Expression(t *testing.T) {
	t.Parallel()

	executor := NewConditionExecutor(nil)
	node := conditionNode(map[string]any{
		"conditionType": ConditionTypeExpression,
		"condition":     `input.length > 5 && context.order.total > 100`,
	})

	execContext := map[string]any{
		"inbound": map[string]any{"content": "quero comprar"},
		"order":   map[string]any{"total": 150},
	}

	result, err := executor.Execute(context.Background(), node, execContext)
	require.NoError(t, err)
	assert.Equal(t, models.HandleTrue, result.SelectedHandle)
}

func TestConditionExecutor_UnknownTypeDefaultsToFalseWithWarning(t *testing.T) {
	t.Parallel()

	executor := NewConditionExecutor(nil)
	node := conditionNode(map[string]any{
		"condition": "ajuda",
	})

	result, err := executor.Execute(context.Background(), node, messageContext("preciso de ajuda"))
	require.NoError(t, err)
	assert.Equal(t, models.HandleFalse, result.SelectedHandle)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, false, result.Output["condition_result"])
}
