package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/estctiger/estctiger/internal/generator"
	"github.com/estctiger/estctiger/models"
)

type stubSecurity struct {
	verdict models.SecurityVerdict
}

func (s *stubSecurity) Evaluate(ctx context.Context, query string) models.SecurityVerdict {
	return s.verdict
}

type stubGen struct {
	response string
	err      error
	called   bool
}

func (s *stubGen) Generate(ctx context.Context, query, sessionID string) (string, string, error) {
	s.called = true
	if sessionID == "" {
		sessionID = "session-1"
	}
	return s.response, sessionID, s.err
}

type stubOutput struct {
	verdict models.OutputVerdict
}

func (s *stubOutput) Evaluate(response string) models.OutputVerdict {
	return s.verdict
}

func allow() *stubSecurity {
	return &stubSecurity{verdict: models.SecurityVerdict{Safe: true, Reason: "Query passed security validation"}}
}

func approve() *stubOutput {
	return &stubOutput{verdict: models.OutputVerdict{Approved: true, Category: "approved"}}
}

func TestRunHappyPath(t *testing.T) {
	gen := &stubGen{response: "ESTC looks fine."}
	p := New(allow(), gen, approve(), zap.NewNop())

	result, err := p.Run(context.Background(), "How is ESTC?", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Blocked {
		t.Fatalf("result blocked: %+v", result)
	}
	if result.Response != "ESTC looks fine." {
		t.Fatalf("Response = %q", result.Response)
	}
	if result.SessionID != "session-1" {
		t.Fatalf("SessionID = %q", result.SessionID)
	}
}

func TestRunSecurityBlockSkipsGeneration(t *testing.T) {
	gen := &stubGen{response: "should not run"}
	sec := &stubSecurity{verdict: models.SecurityVerdict{Safe: false, Reason: "Query is excessively long and may be malicious"}}
	p := New(sec, gen, approve(), zap.NewNop())

	result, err := p.Run(context.Background(), "bad", "s1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Blocked {
		t.Fatal("unsafe query not blocked")
	}
	if !strings.Contains(result.Response, "excessively long") {
		t.Fatalf("Response = %q", result.Response)
	}
	if gen.called {
		t.Fatal("generation ran after a security block")
	}
	if result.SessionID != "s1" {
		t.Fatalf("SessionID = %q", result.SessionID)
	}
}

func TestRunNoDataBecomesExplicitMessage(t *testing.T) {
	gen := &stubGen{err: generator.ErrNoData}
	p := New(allow(), gen, approve(), zap.NewNop())

	result, err := p.Run(context.Background(), "How is ESTC?", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Blocked {
		t.Fatal("no-data result should not be marked blocked")
	}
	if !strings.Contains(result.Response, "cannot provide ESTC analysis") {
		t.Fatalf("Response = %q", result.Response)
	}
}

func TestRunGenerationErrorPropagates(t *testing.T) {
	gen := &stubGen{err: errors.New("model down")}
	p := New(allow(), gen, approve(), zap.NewNop())

	if _, err := p.Run(context.Background(), "How is ESTC?", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunOutputBlock(t *testing.T) {
	gen := &stubGen{response: "password: hunter2"}
	out := &stubOutput{verdict: models.OutputVerdict{
		Approved: false,
		Feedback: "Response contains sensitive data",
		Category: "security",
	}}
	p := New(allow(), gen, out, zap.NewNop())

	result, err := p.Run(context.Background(), "How is ESTC?", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Blocked {
		t.Fatal("leaky response not blocked")
	}
	if strings.Contains(result.Response, "hunter2") {
		t.Fatal("blocked response leaked original content")
	}
}
