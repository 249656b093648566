package sentiment

import "context"

// Label classifies the overall tone of a set of headlines.
type Label string

const (
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
	LabelPositive Label = "positive"
)

// Estimator maps recent news headlines to a sentiment label with a
// confidence score in [0, 1]. Implementations are expected to be safe for
// concurrent use by multiple trading sessions.
type Estimator interface {
	Estimate(ctx context.Context, headlines []string) (Label, float64, error)
}

// Fixed is an Estimator that always returns the same answer. It is used when
// no model service is configured and as a stand-in for tests.
type Fixed struct {
	Label       Label
	Probability float64
}

// Estimate returns the fixed label and probability for any input.
func (f Fixed) Estimate(ctx context.Context, headlines []string) (Label, float64, error) {
	return f.Label, f.Probability, nil
}
