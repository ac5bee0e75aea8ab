package executors

import "github.com/zapflow/zapflow/pkg/models"

// DataSchemas returns the JSON schema for each node type's Data payload.
// The flow service validates structures against these before saving.
func DataSchemas() map[models.NodeType]*models.JSONSchema {
	return map[models.NodeType]*models.JSONSchema{
		models.NodeTypeStart: {
			Type:  "object",
			Title: "Start node",
		},
		models.NodeTypeMessage: {
			Type:     "object",
			Title:    "Message node",
			Required: []string{"message"},
			Properties: map[string]*models.Property{
				"message": {
					Type:        "string",
					Description: "Message text, with {{variable}} placeholders resolved against the execution context",
				},
			},
		},
		models.NodeTypeCondition: {
			Type:     "object",
			Title:    "Condition node",
			Required: []string{"condition"},
			Properties: map[string]*models.Property{
				"conditionType": {
					Type: "string",
					Enum: []any{
						ConditionTypeText,
						ConditionTypeNumber,
						ConditionTypeRegex,
						ConditionTypeIntent,
						ConditionTypeExpression,
					},
				},
				"condition": {Type: "string"},
				"input": {
					Type:        "string",
					Description: "Template for the value under test, defaults to {{inbound.content}}",
				},
			},
		},
		models.NodeTypeAction: {
			Type:     "object",
			Title:    "Action node",
			Required: []string{"actionType"},
			Properties: map[string]*models.Property{
				"actionType": {
					Type: "string",
					Enum: []any{
						ActionTypeWebhook,
						ActionTypeTransferChatbot,
						ActionTypeTransferDepartment,
						ActionTypeSetVariable,
						ActionTypeWait,
					},
				},
				"url":      {Type: "string"},
				"method":   {Type: "string"},
				"payload":  {Type: "object"},
				"target":   {Type: "string"},
				"variable": {Type: "string"},
				"duration": {Type: "number"},
			},
		},
		models.NodeTypeEnd: {
			Type:  "object",
			Title: "End node",
			Properties: map[string]*models.Property{
				"reason": {Type: "string"},
			},
		},
	}
}
