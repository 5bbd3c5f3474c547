package agents

import (
	"pulse-reports/internal/metrics"
	"pulse-reports/internal/models"
)

// Registry maps report types to their agents. The mapping is fixed at
// construction; the "custom" type deliberately has no agent, so requesting
// it exercises the unregistered-type failure path.
type Registry struct {
	agents map[models.ReportType]Agent
}

// NewRegistry creates a registry with every built-in agent bound
func NewRegistry(aggregator *metrics.Aggregator) *Registry {
	r := &Registry{agents: make(map[models.ReportType]Agent)}
	r.Register(NewActivityAgent(aggregator))
	r.Register(NewProductivityAgent(aggregator))
	r.Register(NewHabitsAgent(aggregator))
	r.Register(NewTaskAgent(aggregator))
	r.Register(NewSummaryAgent(aggregator))
	r.Register(NewDashboardAgent(aggregator))
	return r
}

// Register binds an agent to its report type
func (r *Registry) Register(agent Agent) {
	r.agents[agent.Type()] = agent
}

// Get returns the agent bound to a report type
func (r *Registry) Get(reportType models.ReportType) (Agent, bool) {
	agent, ok := r.agents[reportType]
	return agent, ok
}

// Types returns the registered report types
func (r *Registry) Types() []models.ReportType {
	types := make([]models.ReportType, 0, len(r.agents))
	for t := range r.agents {
		types = append(types, t)
	}
	return types
}
