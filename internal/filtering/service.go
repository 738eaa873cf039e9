package filtering

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/pkg/cel"
	"chatgate/pkg/metrics"
	"chatgate/pkg/models"
	"chatgate/pkg/tracing"
)

type errorHandlingStatus int

const (
	errorHandlingDeny errorHandlingStatus = iota
	errorHandlingSkip
)

type Service struct {
	rules           []Rule
	rulesMu         sync.RWMutex
	filteringConfig config.FilteringConfig
	evaluator       *cel.Evaluator
	logger          logger.Logger
}

// NewService compiles the enabled rules from cfg. An expression that does not
// compile to a bool fails construction.
func NewService(cfg config.FilteringConfig, log logger.Logger) (*Service, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	s := &Service{
		filteringConfig: cfg,
		evaluator:       evaluator,
		logger:          log,
	}
	if err := s.LoadRules(context.Background(), cfg.Rules); err != nil {
		return nil, err
	}
	return s, nil
}

// Allow reports whether msg passes every rule.
func (s *Service) Allow(ctx context.Context, msg *models.CanonicalMessage) bool {
	ctx, span := tracing.StartSpan(ctx, "filtering.allow", msg.ID, msg.ConversationID)
	defer span.End()

	rules := s.getActiveRules()
	if len(rules) == 0 {
		return true
	}

	start := time.Now()
	passed := s.evaluateRules(ctx, rules, msg)
	s.recordMetrics(time.Since(start), passed)
	return passed
}

func (s *Service) getActiveRules() []Rule {
	s.rulesMu.RLock()
	defer s.rulesMu.RUnlock()

	rules := make([]Rule, len(s.rules))
	copy(rules, s.rules)
	return rules
}

func (s *Service) evaluateRules(ctx context.Context, rules []Rule, msg *models.CanonicalMessage) bool {
	for _, rule := range rules {
		if ctx.Err() != nil {
			return false
		}

		result, err := cel.Run(ctx, rule.program, msg)
		if err != nil {
			metrics.IncFilteringRuleEvaluation(rule.Name, "error")
			if s.handleEvaluationError(ctx, rule, err) == errorHandlingDeny {
				return false
			}
			continue
		}

		if !result {
			metrics.IncFilteringRuleEvaluation(rule.Name, "rejected")
			s.logger.DebugwCtx(ctx, "Rule filtered message",
				"rule_name", rule.Name,
			)
			return false
		}
		metrics.IncFilteringRuleEvaluation(rule.Name, "passed")
	}

	return true
}

func (s *Service) handleEvaluationError(ctx context.Context, rule Rule, err error) errorHandlingStatus {
	s.logger.ErrorwCtx(ctx, "Rule evaluation error",
		"rule_name", rule.Name,
		"error", err,
	)

	switch s.filteringConfig.Fallback.OnError {
	case constants.FallbackDeny:
		metrics.FallbackUsageTotal.WithLabelValues("filtering", "deny_on_error").Inc()
		s.logger.WarnwCtx(ctx, "Evaluation error, denying message (fallback: deny)",
			"rule_name", rule.Name,
		)
		return errorHandlingDeny
	default:
		metrics.FallbackUsageTotal.WithLabelValues("filtering", "allow_on_error").Inc()
		s.logger.WarnwCtx(ctx, "Evaluation error, allowing message (fallback: allow)",
			"rule_name", rule.Name,
		)
		return errorHandlingSkip
	}
}

func (s *Service) recordMetrics(duration time.Duration, passed bool) {
	status := "passed"
	if !passed {
		status = "filtered"
	}
	metrics.FilteringMessagesTotal.WithLabelValues(status).Inc()
	s.logger.Debugw("Policy evaluated", "status", status, "duration_ms", duration.Milliseconds())
}

// LoadRules compiles the enabled rules and swaps them in atomically. On a
// compile error the current rules stay in place.
func (s *Service) LoadRules(ctx context.Context, defs []config.FilterRule) error {
	rules := make([]Rule, 0, len(defs))
	for i, def := range defs {
		if !def.Enabled {
			continue
		}
		name := def.Name
		if name == "" {
			name = fmt.Sprintf("rule_%d", i)
		}
		program, err := s.evaluator.CompileFilter(def.Expression)
		if err != nil {
			return fmt.Errorf("filter rule %s: %w", name, err)
		}
		rules = append(rules, Rule{Name: name, Expression: def.Expression, program: program})
	}

	s.updateRules(ctx, rules)
	return nil
}

func (s *Service) updateRules(ctx context.Context, rules []Rule) {
	s.rulesMu.Lock()
	s.rules = rules
	s.rulesMu.Unlock()

	metrics.SetFilteringActiveRules(len(rules))
	s.logger.InfowCtx(ctx, "Loaded filter rules",
		"rules_count", len(rules),
	)
}

// Rules lists the active rules.
func (s *Service) Rules() []Rule {
	return s.getActiveRules()
}
