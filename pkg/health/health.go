package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

// ErrDegraded marks a check result as degraded rather than unhealthy.
var ErrDegraded = errors.New("degraded")

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type CheckerRegistry struct {
	checkers []Checker
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make([]Checker, 0),
	}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, checker)
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make(map[string]CheckResult)
	allHealthy := true
	anyDegraded := false

	for _, checker := range r.checkers {
		err := checker.Check(ctx)
		result := CheckResult{
			Timestamp: time.Now(),
		}

		switch {
		case err == nil:
			result.Status = StatusHealthy
		case errors.Is(err, ErrDegraded):
			result.Status = StatusDegraded
			result.Message = err.Error()
			anyDegraded = true
		default:
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			allHealthy = false
		}

		results[checker.Name()] = result
	}

	overallStatus := StatusHealthy
	if !allHealthy {
		overallStatus = StatusUnhealthy
	} else if anyDegraded {
		overallStatus = StatusDegraded
	}

	return Health{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string {
	return "redis"
}

func (c *RedisChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Connectable is anything that reports a live session.
type Connectable interface {
	Connected() bool
}

type TransportChecker struct {
	name      string
	transport Connectable
}

func NewTransportChecker(name string, transport Connectable) *TransportChecker {
	return &TransportChecker{name: name, transport: transport}
}

func (c *TransportChecker) Name() string {
	return "transport_" + c.name
}

func (c *TransportChecker) Check(ctx context.Context) error {
	if !c.transport.Connected() {
		return fmt.Errorf("%s transport is not connected", c.name)
	}
	return nil
}

// Breaker is a circuit breaker whose state can be inspected.
type Breaker interface {
	IsOpen() bool
	StateString() string
}

// BreakerChecker reports degraded while the breaker is open.
type BreakerChecker struct {
	name    string
	breaker Breaker
}

func NewBreakerChecker(name string, breaker Breaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: breaker}
}

func (c *BreakerChecker) Name() string {
	return "circuit_breaker_" + c.name
}

func (c *BreakerChecker) Check(ctx context.Context) error {
	if c.breaker.IsOpen() {
		return fmt.Errorf("%w: circuit breaker %s is %s", ErrDegraded, c.name, c.breaker.StateString())
	}
	return nil
}
