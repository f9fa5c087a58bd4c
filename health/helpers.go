package health

import "time"

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == "healthy",
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return newStatus(component, "healthy", message)
}

// NewUnhealthy creates a new unhealthy status
func NewUnhealthy(component, message string) Status {
	return newStatus(component, "unhealthy", message)
}

// NewDegraded creates a new degraded status
func NewDegraded(component, message string) Status {
	return newStatus(component, "degraded", message)
}

// Aggregate rolls component statuses up into one gateway-level status.
// Any unhealthy component makes the aggregate unhealthy; otherwise any
// degraded component makes it degraded.
func Aggregate(component string, components []Status) Status {
	if len(components) == 0 {
		return NewHealthy(component, "No components registered")
	}

	unhealthy, degraded := 0, 0
	for _, c := range components {
		switch {
		case c.IsUnhealthy():
			unhealthy++
		case c.IsDegraded():
			degraded++
		}
	}

	var status Status
	switch {
	case unhealthy > 0:
		status = NewUnhealthy(component, "One or more components are unhealthy")
	case degraded > 0:
		status = NewDegraded(component, "One or more components are degraded")
	default:
		status = NewHealthy(component, "All components are healthy")
	}

	status.SubStatuses = make([]Status, len(components))
	copy(status.SubStatuses, components)

	return status
}
