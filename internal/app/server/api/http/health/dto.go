package health

type Input struct{}

type Output struct {
	Body Response
}

type Response struct {
	Status string `json:"status" example:"OK" doc:"Health status of the agent"`
	// Online is the agent's view of the backend, not the agent itself.
	Online bool `json:"online" doc:"Whether the backend is currently reachable"`
}
