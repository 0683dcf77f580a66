package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// GenerativeStrategy asks an OpenAI-compatible chat completion endpoint for a
// best-effort schedule. Its answers may name employees instead of using ids.
type GenerativeStrategy struct {
	client *resty.Client
	model  string
	logger *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

var jsonArray = regexp.MustCompile(`(?s)\[.*\]`)

// NewGenerativeStrategy returns a client for the chat completions API at
// baseURL.
func NewGenerativeStrategy(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *GenerativeStrategy {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetRetryCount(1).
		SetRetryWaitTime(time.Second).
		SetHeader("Content-Type", "application/json")

	return &GenerativeStrategy{client: client, model: model, logger: logger}
}

func (g *GenerativeStrategy) Name() string { return "generative" }

func (g *GenerativeStrategy) Generate(ctx context.Context, req Request) (Result, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return Result{Status: StatusError, Reason: err.Error()}, err
	}

	var out chatResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       g.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: 0.3,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/chat/completions")
	if err != nil {
		return Result{Status: StatusError, Reason: err.Error()}, fmt.Errorf("call generator: %w", err)
	}
	if resp.IsError() {
		msg := fmt.Sprintf("generator returned HTTP %d", resp.StatusCode())
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return Result{Status: StatusError, Reason: msg}, errors.New(msg)
	}

	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		err := errors.New("empty generator response")
		return Result{Status: StatusError, Reason: err.Error()}, err
	}
	assignments, err := ParseAssignments(out.Choices[0].Message.Content)
	if err != nil {
		return Result{Status: StatusError, Reason: err.Error()}, err
	}

	g.logger.Info("generator finished", zap.Int("assignments", len(assignments)))
	return Result{Status: StatusFeasible, Assignments: assignments, Strategy: g.Name()}, nil
}

// ParseAssignments extracts the JSON array of assignments from free-form
// text.
func ParseAssignments(content string) ([]models.Assignment, error) {
	content = strings.TrimSpace(content)
	if m := jsonArray.FindString(content); m != "" {
		content = m
	}
	var out []models.Assignment
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("invalid generator response: %w", err)
	}
	return out, nil
}

func buildPrompt(req Request) (string, error) {
	slots, err := json.MarshalIndent(req.Slots, "", "  ")
	if err != nil {
		return "", err
	}
	employees, err := json.MarshalIndent(req.Employees, "", "  ")
	if err != nil {
		return "", err
	}
	periods, err := json.Marshal(req.PeriodTimes)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are a workforce scheduling expert. Build an optimal weekly schedule.\n\n")
	fmt.Fprintf(&b, "Week: %s (Monday = day 0, Sunday = day 6).\n\n", req.WeekStart)
	fmt.Fprintf(&b, "SLOTS AND REQUIRED HEADCOUNT:\n%s\n\n", slots)
	fmt.Fprintf(&b, "EMPLOYEES (availability, incompatibilities, absences):\n%s\n\n", employees)
	fmt.Fprintf(&b, "PERIOD TIMES:\n%s\n\n", periods)
	if len(req.FixedAssignments) > 0 {
		fixed, err := json.Marshal(req.FixedAssignments)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "ALREADY ASSIGNED (keep these, only fill what is missing):\n%s\n\n", fixed)
	}
	b.WriteString("RULES:\n")
	b.WriteString("1. Only assign employees whose availability is not \"unavailable\" for the day and period.\n")
	b.WriteString("2. Never assign on timeOffDates or exceptionDates.\n")
	b.WriteString("3. Honour periodPreference when possible.\n")
	b.WriteString("4. Never put two employees listed in each other's incompatibleWith on overlapping shifts.\n")
	fmt.Fprintf(&b, "5. Each employee works at most maxHours per week, and rests at least %d hours between shifts.\n", req.MinRestHours)
	b.WriteString("6. The employee must hold the slot's role (roleIds contains roleId).\n\n")
	b.WriteString(`Reply ONLY with a JSON array: [{"employeeId":"id","locationId":"id","roleId":"id","dayOfWeek":0-6,"period":"morning|evening"}]`)
	b.WriteString("\nNo other text.")
	return b.String(), nil
}
