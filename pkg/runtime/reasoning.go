package runtime

// ReasoningStep is one entry in a request's reasoning trace: a named
// pipeline stage, a human-readable message, the evidence it leaned on, and
// a confidence in [0,1]. The runtime appends one per stage it executes.
type ReasoningStep struct {
	Name       string
	Message    string
	References []string
	Confidence float64
}

type reasoningLog struct {
	steps []ReasoningStep
}

func (l *reasoningLog) add(name, message string, references []string, confidence float64) {
	l.steps = append(l.steps, ReasoningStep{
		Name:       name,
		Message:    message,
		References: references,
		Confidence: confidence,
	})
}
