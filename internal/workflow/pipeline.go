// Package workflow chains the three pipeline stages: security screening,
// grounded generation, and the output screen.
package workflow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/estctiger/estctiger/internal/generator"
	"github.com/estctiger/estctiger/internal/logging"
	"github.com/estctiger/estctiger/models"
)

const noDataMessage = "ERROR: Unable to connect to the ESTC data source. Please check the connection and try again. I cannot provide ESTC analysis without access to the financial data."

// SecurityGate screens incoming queries.
type SecurityGate interface {
	Evaluate(ctx context.Context, query string) models.SecurityVerdict
}

// Generating produces the grounded answer.
type Generating interface {
	Generate(ctx context.Context, query, sessionID string) (string, string, error)
}

// OutputGate screens outgoing responses.
type OutputGate interface {
	Evaluate(response string) models.OutputVerdict
}

// Result is the pipeline's answer for one query.
type Result struct {
	Response  string
	Blocked   bool
	SessionID string
}

// Pipeline runs a query through all three stages in order.
type Pipeline struct {
	security SecurityGate
	gen      Generating
	output   OutputGate
	logger   *zap.Logger
}

func New(security SecurityGate, gen Generating, output OutputGate, logger *zap.Logger) *Pipeline {
	return &Pipeline{security: security, gen: gen, output: output, logger: logger}
}

// Run processes one user query. A blocked result carries the reason in
// Response; only generation failures other than missing data surface as
// errors.
func (p *Pipeline) Run(ctx context.Context, query, sessionID string) (*Result, error) {
	start := time.Now()
	verdict := p.security.Evaluate(ctx, query)
	logging.Audit(p.logger, "security", start, outcome(verdict.Safe),
		zap.Strings("patterns", verdict.MatchedPatterns))
	if !verdict.Safe {
		return &Result{
			Response:  "I cannot process this query: " + verdict.Reason,
			Blocked:   true,
			SessionID: sessionID,
		}, nil
	}

	start = time.Now()
	response, sessionID, err := p.gen.Generate(ctx, query, sessionID)
	if err != nil {
		logging.Audit(p.logger, "generate", start, "error", zap.Error(err))
		if errors.Is(err, generator.ErrNoData) {
			return &Result{Response: noDataMessage, SessionID: sessionID}, nil
		}
		return nil, err
	}
	logging.Audit(p.logger, "generate", start, "ok")

	start = time.Now()
	outputVerdict := p.output.Evaluate(response)
	logging.Audit(p.logger, "output", start, outcome(outputVerdict.Approved),
		zap.String("category", outputVerdict.Category))
	if !outputVerdict.Approved {
		return &Result{
			Response:  "I generated a response but it did not pass the safety review: " + outputVerdict.Feedback,
			Blocked:   true,
			SessionID: sessionID,
		}, nil
	}

	return &Result{Response: response, SessionID: sessionID}, nil
}

func outcome(ok bool) string {
	if ok {
		return "pass"
	}
	return "blocked"
}
