package interview

import (
	"fmt"
	"strings"
)

// Answers holds the selections for each question by index. A selection may
// be a predefined option or a free-text answer typed by the user.
type Answers [][]string

// NewAnswers returns an empty answer slot per question
func NewAnswers(n int) Answers {
	a := make(Answers, n)
	for i := range a {
		a[i] = []string{}
	}
	return a
}

// For returns the selections for question i, nil when out of range
func (a Answers) For(i int) []string {
	if i < 0 || i >= len(a) {
		return nil
	}
	return a[i]
}

// Set replaces the selections for question i with the predefined options
// plus any free-text answers, trimmed and deduplicated in order.
func (a Answers) Set(i int, options []string, other []string) Answers {
	out := a.clone()
	if i < 0 || i >= len(out) {
		return out
	}
	seen := map[string]bool{}
	sel := make([]string, 0, len(options)+len(other))
	for _, list := range [][]string{options, other} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			sel = append(sel, s)
		}
	}
	out[i] = sel
	return out
}

// ToggleAll selects every predefined option of q for question i, or
// deselects them all when they are already selected. Free-text answers are kept.
func (a Answers) ToggleAll(i int, q Question) Answers {
	current := a.For(i)
	all := true
	for _, o := range q.Options {
		if !contains(current, o) {
			all = false
			break
		}
	}

	if all {
		kept := make([]string, 0, len(current))
		for _, s := range current {
			if !q.HasOption(s) {
				kept = append(kept, s)
			}
		}
		return a.Set(i, kept, nil)
	}
	return a.Set(i, append(append([]string(nil), current...), q.Options...), nil)
}

// Resize keeps answers aligned with a new question count
func (a Answers) Resize(n int) Answers {
	out := NewAnswers(n)
	for i := 0; i < n && i < len(a); i++ {
		out[i] = append([]string{}, a[i]...)
	}
	return out
}

// Flat returns every selection across questions
func (a Answers) Flat() []string {
	var out []string
	for _, sel := range a {
		out = append(out, sel...)
	}
	return out
}

func (a Answers) clone() Answers {
	out := make(Answers, len(a))
	for i, sel := range a {
		out[i] = append([]string{}, sel...)
	}
	return out
}

// Combine builds the clarification text sent to the generator, one
// "Pregunta/Respuestas" block per question.
func Combine(questions []Question, answers Answers) string {
	blocks := make([]string, 0, len(questions))
	for i, q := range questions {
		blocks = append(blocks, fmt.Sprintf("Pregunta: %s\nRespuestas: %s",
			q.Text, strings.Join(answers.For(i), ", ")))
	}
	return strings.Join(blocks, "\n\n")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
