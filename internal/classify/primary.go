package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/adjudex/internal/model"
)

type primaryAnswer struct {
	Index      *int     `json:"index"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// IdentifyPrimaryRepair asks the oracle which item is the principal repair.
// It returns nil without error when no oracle is configured or the oracle
// names no item. Whether the named item qualifies is up to the caller
func (c *Classifier) IdentifyPrimaryRepair(ctx context.Context, items []model.LineItem, coverages []model.LineItemCoverage) (*model.PrimaryRepair, error) {
	if c.oracle == nil || len(items) == 0 {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "classify.IdentifyPrimaryRepair",
		trace.WithAttributes(attribute.Int("items", len(items))))
	defer span.End()

	text, err := c.complete(ctx, primarySystemPrompt, buildPrimaryPrompt(items, coverages))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: primary repair: %v", model.ErrOracleFailure, err)
	}

	raw, err := extractJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("%w: primary repair: %v", model.ErrOracleFailure, err)
	}
	var answer primaryAnswer
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return nil, fmt.Errorf("%w: primary repair: %v", model.ErrOracleFailure, err)
	}

	if answer.Index == nil {
		return nil, nil
	}
	if *answer.Index < 0 || *answer.Index >= len(items) {
		return nil, fmt.Errorf("%w: primary repair index %d out of range", model.ErrOracleFailure, *answer.Index)
	}

	confidence := 0.0
	if answer.Confidence != nil && !math.IsNaN(*answer.Confidence) {
		confidence = math.Max(0, math.Min(1, *answer.Confidence))
	}

	return &model.PrimaryRepair{
		Index:      *answer.Index,
		Method:     model.PrimaryByReasoning,
		Confidence: confidence,
		Reason:     strings.TrimSpace(answer.Reasoning),
	}, nil
}
