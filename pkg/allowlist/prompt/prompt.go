// Package prompt solicits a one-time trust choice from a human when no
// stored allowlist decision applies. The Prompter port keeps decision logic
// testable without a real terminal; the production implementation drives a
// survey select prompt.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/mattn/go-isatty"
)

// Choice is the human's answer for a single schema URL.
type Choice int

const (
	// ChoiceDeny refuses the fetch. It is also the fail-safe default.
	ChoiceDeny Choice = iota
	// ChoiceAllowSession permits the fetch for this process only.
	ChoiceAllowSession
	// ChoiceAllowPermanent permits the fetch and persists the decision.
	ChoiceAllowPermanent
)

// ErrInterrupted reports that the user cancelled the prompt (e.g. Ctrl+C).
var ErrInterrupted = errors.New("prompt: interrupted")

// Prompter asks the user to decide whether a schema URL may be fetched.
type Prompter interface {
	Ask(ctx context.Context, url string) (Choice, error)
}

const (
	optionPermanent = "Allow permanently (saved to allowlist)"
	optionSession   = "Allow for this session only"
	optionDeny      = "Deny"
)

// SurveyPrompter implements Prompter on an interactive terminal.
type SurveyPrompter struct{}

// NewSurveyPrompter returns the terminal-backed prompter.
func NewSurveyPrompter() *SurveyPrompter {
	return &SurveyPrompter{}
}

// Ask presents exactly three choices for the URL and blocks until the user
// answers. Prompting is a synchronous suspension point: no timeout applies.
func (p *SurveyPrompter) Ask(ctx context.Context, url string) (Choice, error) {
	if err := ctx.Err(); err != nil {
		return ChoiceDeny, err
	}

	question := &survey.Select{
		Message: fmt.Sprintf("Template references an untrusted schema:\n  %s\nAllow fetching it?", url),
		Options: []string{optionPermanent, optionSession, optionDeny},
		Default: optionDeny,
	}

	var answer string
	if err := survey.AskOne(question, &answer, survey.WithValidator(survey.Required)); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return ChoiceDeny, ErrInterrupted
		}
		return ChoiceDeny, err
	}

	switch answer {
	case optionPermanent:
		return ChoiceAllowPermanent, nil
	case optionSession:
		return ChoiceAllowSession, nil
	default:
		return ChoiceDeny, nil
	}
}

// Interactive reports whether both stdin and stderr are attached to a
// terminal, i.e. whether prompting is possible at all.
func Interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stderr.Fd())
}
