package ai

import (
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	"mindmap-backend/domain/interview"
)

func clarifyPrompt(content string) string {
	return fmt.Sprintf(`Actúa como un experto Arquitecto de Información y Facilitador Visual.
Tu objetivo NO es entender el negocio del usuario, sino entender CÓMO quiere visualizar su información.

Analiza brevemente este contenido: "%s"

Genera %d preguntas de clarificación para decidir la ESTRUCTURA del mapa mental.

REGLAS:
1. NO preguntes sobre el tema (ej: "no preguntes cuál es el objetivo de ventas").
2. PREGUNTA sobre la ORGANIZACIÓN (ej: "¿Prefieres agrupar por fases o por departamentos?", "¿El enfoque debe ser estratégico u operativo?").
3. Las opciones deben ser estilos de ordenación, formatos o niveles de profundidad.`,
		interview.Truncate(content, interview.ClarifyContextLimit), interview.QuestionCount)
}

func reformulatePrompt(content string, questions []interview.Question, answers interview.Answers) string {
	selected := answers.Flat()
	if selected == nil {
		selected = []string{}
	}
	flat, _ := json.Marshal(selected)

	return fmt.Sprintf(`Eres un experto en Metodologías Ágiles y Visual Thinking. El usuario quiere replantear la forma en que vamos a organizar su mapa mental.

CONTEXTO DEL DOCUMENTO (Para saber qué estructuras son posibles):
%s

ESTADO ACTUAL DE LA ENTREVISTA:
%s

TU MISIÓN:
Genera un array JSON con %d objetos (preguntas).

REGLAS CRÍTICAS DE RE-GENERACIÓN:
1. SI LA PREGUNTA ESTÁ RESPONDIDA:
   - MANTENLA. El usuario ya decidió esa parte de la estructura.
   - OBLIGATORIO: Las opciones seleccionadas (%s) deben aparecer LITERALMENTE.

2. SI LA PREGUNTA NO ESTÁ RESPONDIDA:
   - ELIMÍNALA. No era relevante para organizar este contenido.
   - GENERA UNA NUEVA sobre la ARQUITECTURA de la información.
   - Ejemplos válidos: "¿Debemos separar por trimestres?", "¿Quieres nodos especiales para decisiones?", "¿Agrupamos por tipo de recurso?".
   - NUNCA preguntes sobre el contenido del texto (ej: No preguntes "¿Quién es el cliente?").

3. OBJETIVO: Definir el "esqueleto" del mapa mental.`,
		interview.Truncate(content, interview.ReformulateContextLimit),
		interview.Summary(questions, answers),
		interview.QuestionCount,
		flat)
}

func generatePrompt(content, clarifications string) string {
	return fmt.Sprintf(`Eres la IA 'Nanobanana' de MORETURISMO, arquitecta de información experta.

OBJETIVO ÚNICO:
Crear un MAPA MENTAL JERÁRQUICO ESTRICTO (Estructura de Árbol).
La función es organizar la información proporcionada según las preferencias de estructura del usuario.

ENTRADA:
- Contexto Original: %s
- Preferencias de Estructura (Clarificaciones): %s

REGLAS DE ORO (OBLIGATORIAS):
1. ESTRUCTURA DE ÁRBOL:
   - SOLO puede haber 1 Nodo Raíz (Nivel 0).
   - TODO nodo (excepto la raíz) DEBE tener un nodo padre ('source').
   - PROHIBIDO crear nodos aislados o listas planas sin conexión.

2. FLUJO DE INFORMACIÓN (Niveles):
   - Nivel 1 (Raíz): El concepto central o título del proyecto.
   - Nivel 2 (Ramas Principales): Las grandes categorías o pilares (según lo definido en las clarificaciones: fases, temas, departamentos, etc.).
   - Nivel 3 (Sub-categorías): Desglose de las ramas principales.
   - Nivel 4+ (Detalles/Tareas): Acciones específicas, datos concretos o responsables.

3. CONTENIDO ACCIONABLE:
   - No uses textos largos. Usa conceptos breves y claros.
   - Si detectas una tarea, usa type: 'task'.
   - Si detectas una fecha o fase, usa type: 'milestone'.

SALIDA ESPERADA:
Un JSON con 'nodes' y 'edges' que represente un árbol perfecto donde A conecta con B, y B conecta con C.`,
		interview.Truncate(content, interview.GenerateContextLimit),
		interview.Truncate(clarifications, interview.ClarificationContextLimit))
}

func expandPrompt(node entities.Node) string {
	return fmt.Sprintf(`Expande la rama del mapa mental: "%s" (%s).
Genera 3-5 sub-nodos hijos que dependan jerárquicamente de este concepto.
Deben ser más específicos que el padre.`, node.Label, node.Description)
}

func nodeTypeEnum() []string {
	out := make([]string, len(valueobjects.NodeTypes))
	for i, t := range valueobjects.NodeTypes {
		out[i] = string(t)
	}
	return out
}

func stringSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeString}
}

func questionsSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text":    stringSchema(),
				"options": {Type: genai.TypeArray, Items: stringSchema()},
			},
			Required: []string{"text", "options"},
		},
	}
}

func mapSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"nodes": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":          stringSchema(),
						"label":       {Type: genai.TypeString, Description: "Título corto del nodo"},
						"description": {Type: genai.TypeString, Description: "Contexto adicional"},
						"type":        {Type: genai.TypeString, Enum: nodeTypeEnum()},
					},
					Required: []string{"id", "label", "type"},
				},
			},
			"edges": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":     stringSchema(),
						"source": stringSchema(),
						"target": stringSchema(),
					},
					Required: []string{"id", "source", "target"},
				},
			},
		},
	}
}

func suggestionsSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"label":       stringSchema(),
				"description": stringSchema(),
				"type":        {Type: genai.TypeString, Enum: nodeTypeEnum()},
			},
			Required: []string{"label", "type"},
		},
	}
}
