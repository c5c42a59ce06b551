package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/codefionn/geocopilot/internal/pyexec"
)

// HealthStatus is the overall state reported by HealthCheck.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// Pinger is implemented by model backends that can be probed.
type Pinger interface {
	Ping(ctx context.Context) ([]string, error)
}

// HealthReport summarizes whether a turn can run.
type HealthReport struct {
	Status      HealthStatus `json:"status"`
	Model       string       `json:"model"`
	ModelOK     bool         `json:"model_ok"`
	Models      []string     `json:"models,omitempty"`
	Interpreter bool         `json:"interpreter"`
	Turns       int          `json:"turns"`
	Issues      []string     `json:"issues,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// HealthCheck probes the model backend when it supports probing and
// reports whether the interpreter is compiled in. It does not take the
// turn lock.
func (o *Orchestrator) HealthCheck(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:      HealthStatusHealthy,
		Model:       o.client.GetModelName(),
		ModelOK:     true,
		Interpreter: pyexec.Available,
		Turns:       o.session.TurnCount(),
		Timestamp:   time.Now(),
	}

	if p, ok := o.client.Unwrap().(Pinger); ok {
		models, err := p.Ping(ctx)
		if err != nil {
			report.ModelOK = false
			report.Issues = append(report.Issues, fmt.Sprintf("model backend unreachable: %v", err))
		}
		report.Models = models
	}
	if !report.Interpreter {
		report.Issues = append(report.Issues, "script interpreter not available in this build")
	}

	switch {
	case !report.ModelOK && !report.Interpreter:
		report.Status = HealthStatusUnhealthy
	case len(report.Issues) > 0:
		report.Status = HealthStatusDegraded
	}
	return report
}
