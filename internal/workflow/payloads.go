package workflow

// agentPayload is the minimal payload generator used by transitions whose
// only required field is the acting agent's address (spec.md §6.2
// "Standard payload fields include agent: <address>").
func agentPayload(_ map[string]any, actor string) map[string]any {
	return map[string]any{"agent": actor}
}

// staticPayload returns a payload generator that always emits extra on top
// of the acting agent's address.
func staticPayload(extra map[string]any) PayloadGenerator {
	return func(_ map[string]any, actor string) map[string]any {
		out := map[string]any{"agent": actor}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}
}
