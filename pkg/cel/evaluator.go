package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"chatgate/pkg/models"
)

// Evaluator compiles and runs message policy expressions.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("conversation_id", cel.StringType),
		cel.Variable("sender_id", cel.StringType),
		cel.Variable("from_self", cel.BoolType),
		cel.Variable("type", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("is_group", cel.BoolType),
		cel.Variable("mentions", cel.ListType(cel.StringType)),
		cel.Variable("has_media", cel.BoolType),
		cel.Variable("push_name", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	_, err := e.CompileFilter(expression)
	return err
}

// CompileFilter compiles expression into a program that must yield a bool.
func (e *Evaluator) CompileFilter(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return program, nil
}

// EvaluateFilter compiles and runs expression against msg.
func (e *Evaluator) EvaluateFilter(ctx context.Context, expression string, msg *models.CanonicalMessage) (bool, error) {
	program, err := e.CompileFilter(expression)
	if err != nil {
		return false, err
	}
	return Run(ctx, program, msg)
}

// Run evaluates a compiled filter program against msg.
func Run(ctx context.Context, program cel.Program, msg *models.CanonicalMessage) (bool, error) {
	result, _, err := program.ContextEval(ctx, Activation(msg))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// Activation exposes msg under the variable names declared by the evaluator.
func Activation(msg *models.CanonicalMessage) map[string]interface{} {
	mentions := msg.MentionedIDs
	if mentions == nil {
		mentions = []string{}
	}

	return map[string]interface{}{
		"id":              msg.ID,
		"conversation_id": msg.ConversationID,
		"sender_id":       msg.SenderID,
		"from_self":       msg.FromSelf,
		"type":            msg.PrimaryType,
		"text":            msg.Text,
		"is_group":        msg.IsGroup(),
		"mentions":        mentions,
		"has_media":       msg.Media != nil,
		"push_name":       msg.PushName,
	}
}
