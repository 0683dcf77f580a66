package solver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPSolver calls an external constraint-solver service exposing
// POST /solve.
type HTTPSolver struct {
	client *resty.Client
	logger *zap.Logger
}

type solveResponse struct {
	Status           Status              `json:"status"`
	Shifts           []models.Assignment `json:"shifts"`
	InfeasibleReason string              `json:"infeasibleReason"`
	Error            string              `json:"error"`
	Detail           json.RawMessage     `json:"detail"`
}

// NewHTTPSolver returns a client for baseURL. A URL without a scheme is
// treated as https.
func NewHTTPSolver(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPSolver {
	baseURL = strings.TrimSpace(baseURL)
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPSolver{client: client, logger: logger}
}

func (s *HTTPSolver) Name() string { return "solver" }

func (s *HTTPSolver) Generate(ctx context.Context, req Request) (Result, error) {
	var out solveResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/solve")
	if err != nil {
		return Result{Status: StatusError, Reason: err.Error()}, fmt.Errorf("call solver: %w", err)
	}

	if resp.IsError() {
		msg := out.detailMessage()
		if msg == "" {
			msg = out.Error
		}
		if msg == "" {
			msg = fmt.Sprintf("solver returned HTTP %d", resp.StatusCode())
		}
		return Result{Status: StatusError, Reason: msg}, fmt.Errorf("solver: %s", msg)
	}

	switch out.Status {
	case StatusOptimal, StatusFeasible:
		s.logger.Info("solver finished",
			zap.String("status", string(out.Status)),
			zap.Int("assignments", len(out.Shifts)),
			zap.Duration("elapsed", resp.Time()),
		)
		return Result{Status: out.Status, Assignments: out.Shifts, Strategy: s.Name()}, nil
	case StatusInfeasible:
		reason := out.InfeasibleReason
		if reason == "" {
			reason = "the problem is infeasible"
		}
		return Result{Status: StatusInfeasible, Reason: reason, Strategy: s.Name()}, nil
	}

	msg := out.Error
	if msg == "" {
		msg = out.detailMessage()
	}
	if msg == "" {
		msg = fmt.Sprintf("unknown solver status %q", out.Status)
	}
	return Result{Status: StatusError, Reason: msg}, fmt.Errorf("solver: %s", msg)
}

// detailMessage reads a FastAPI style detail, either a string or a list of
// {msg} objects.
func (r solveResponse) detailMessage() string {
	if len(r.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(r.Detail, &text); err == nil {
		return text
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(r.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}
	return ""
}
