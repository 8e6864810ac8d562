// Package interview models the clarification interview that shapes a map
// before it is generated.
package interview

import (
	"fmt"
	"strings"
)

// QuestionCount is the size of a question set
const QuestionCount = 3

// SkipClarification replaces the combined answers when the user skips the interview
const SkipClarification = "El usuario ha decidido omitir la entrevista de clarificación. " +
	"Genera el mapa basándote exclusivamente en el contenido original y las mejores prácticas del sector turístico."

// Question is a single structural clarification question
type Question struct {
	Text    string   `json:"text" validate:"notblank"`
	Options []string `json:"options"`
}

// HasOption reports whether option is one of the predefined options
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// clone avoids sharing the Options backing array
func (q Question) clone() Question {
	c := q
	c.Options = append([]string(nil), q.Options...)
	return c
}

// DefaultQuestions returns the structural questions used whenever the
// generator cannot supply its own.
func DefaultQuestions() []Question {
	return []Question{
		{
			Text: "¿Cómo prefieres que organice la estructura principal del mapa?",
			Options: []string{
				"Por Temas/Áreas (Temático)",
				"Cronológico (Fases/Tiempo)",
				"Por Responsables/Equipos",
				"Problema vs Solución",
			},
		},
		{
			Text: "¿Qué nivel de granularidad o detalle necesitas en los nodos finales?",
			Options: []string{
				"Solo conceptos macro (High-level)",
				"Ideas con breve descripción",
				"Tareas accionables y específicas",
				"Desglose técnico exhaustivo",
			},
		},
		{
			Text: "¿Cuál es la prioridad visual para jerarquizar la información?",
			Options: []string{
				"Destacar hitos y fechas",
				"Agrupar por prioridades (Alta/Media/Baja)",
				"Separar acciones de información",
				"Flujo de procesos",
			},
		},
	}
}

// CloneQuestions returns a deep copy of qs
func CloneQuestions(qs []Question) []Question {
	out := make([]Question, len(qs))
	for i, q := range qs {
		out[i] = q.clone()
	}
	return out
}

// OrDefault returns qs, or the default questions when qs is empty
func OrDefault(qs []Question) []Question {
	if len(qs) == 0 {
		return DefaultQuestions()
	}
	return qs
}

// AcceptReformulation keeps the current questions unless the proposal has
// exactly QuestionCount entries.
func AcceptReformulation(current, proposed []Question) []Question {
	if len(proposed) != QuestionCount {
		return current
	}
	return proposed
}

// Summary describes the interview state for a reformulation request: for
// each question its text, whether it was answered and its options.
func Summary(questions []Question, answers Answers) string {
	blocks := make([]string, 0, len(questions))
	for i, q := range questions {
		selected := answers.For(i)
		status := "NO RESPONDIDA (El usuario la ignoró)"
		if len(selected) > 0 {
			status = fmt.Sprintf("RESPONDIDA con: %s", quoteList(selected))
		}
		blocks = append(blocks, fmt.Sprintf("Pregunta %d: %q\n- Estado: %s\n- Opciones actuales: %s",
			i+1, q.Text, status, quoteList(q.Options)))
	}
	return strings.Join(blocks, "\n\n")
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
