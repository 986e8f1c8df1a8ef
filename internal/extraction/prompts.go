package extraction

import "github.com/Gabriell-Belmont/sam--product-management/internal/item"

const (
	extractTemperature = 0.3
	enrichTemperature  = 0.7
	analyzeTemperature = 0.5
)

const extractPreamble = `Você é um assistente especializado em extrair informações estruturadas de prompts de usuários para criação de itens no Jira.
Sua tarefa é analisar o texto do usuário e extrair campos relevantes para o tipo de item especificado.
Retorne apenas um objeto JSON com os campos extraídos, sem explicações adicionais.
`

var extractFieldHints = map[item.Type]string{
	item.TypeEpic: `Para épicos, extraia os seguintes campos quando disponíveis:
- summary: título do épico
- description: descrição detalhada
- epic_name: nome do épico (pode ser igual ao summary)
- objective: objetivo do épico
- benefits: benefícios esperados
- labels: etiquetas/tags (array de strings)
`,
	item.TypeStory: `Para histórias, extraia os seguintes campos quando disponíveis:
- summary: título da história
- description: descrição detalhada
- as_a: persona/usuário (parte do formato "Como... Gostaria... Para...")
- i_want: desejo/necessidade (parte do formato "Como... Gostaria... Para...")
- so_that: benefício/resultado (parte do formato "Como... Gostaria... Para...")
- acceptance_criteria: critérios de aceitação (texto ou array de strings)
- preconditions: pré-condições
- rules: regras de negócio
- exceptions: exceções às regras
- test_scenarios: cenários de teste
- epic_link: referência ao épico pai (se mencionado)
- labels: etiquetas/tags (array de strings)
`,
	item.TypeTask: `Para tasks, extraia os seguintes campos quando disponíveis:
- summary: título da task
- description: descrição detalhada
- acceptance_criteria: critérios de aceitação (texto ou array de strings)
- story_link: referência à história pai (se mencionada)
- labels: etiquetas/tags (array de strings)
`,
	item.TypeSubtask: subtaskFieldHints,
	item.TypeSubBug:  subtaskFieldHints,
	item.TypeBug: `Para bugs, extraia os seguintes campos quando disponíveis:
- summary: título do bug
- description: descrição detalhada
- error_scenario: cenário onde o erro ocorre
- expected_scenario: comportamento esperado
- impact: impacto do bug
- origin: origem do bug
- solution: solução proposta
- steps_to_reproduce: passos para reproduzir o bug
- severity: severidade (Low, Medium, High, Critical)
- parent_key: chave do item pai (se for um sub-bug)
- labels: etiquetas/tags (array de strings)
`,
}

const subtaskFieldHints = `Para subtasks, extraia os seguintes campos quando disponíveis:
- summary: título da subtask
- description: descrição detalhada
- parent_key: chave do item pai (obrigatório para subtasks)
- acceptance_criteria: critérios de aceitação (texto ou array de strings)
- labels: etiquetas/tags (array de strings)
`

const identifyTypeHint = `Primeiro, identifique o tipo de item (épico, história, task, subtask, bug, sub-bug) com base no conteúdo.
Inclua um campo "type" no JSON com o tipo identificado.
Então extraia os campos relevantes para esse tipo.
`

const extractFormat = `Retorne apenas um objeto JSON válido com os campos extraídos.
Se um campo não puder ser extraído, não o inclua no JSON.
Para campos que são arrays (como labels), retorne um array de strings.
`

// extractSystemPrompt builds the extraction instructions. An empty t asks the
// model to identify the type as well.
func extractSystemPrompt(t item.Type) string {
	s := extractPreamble
	if t == "" {
		s += identifyTypeHint
	} else {
		s += "O tipo de item é: " + string(t) + ".\n" + extractFieldHints[t]
	}
	return s + extractFormat
}

const enrichPreamble = `Você é um especialista em Product Management e desenvolvimento de software.
Sua tarefa é enriquecer e estruturar o conteúdo de um item do Jira com base nos campos fornecidos.
Gere conteúdo de alta qualidade, bem estruturado e detalhado para cada campo solicitado.
`

var enrichFieldHints = map[item.Type]string{
	item.TypeEpic: `Para épicos, gere ou melhore os seguintes campos:
- description: Uma descrição detalhada do épico, incluindo contexto, escopo e visão geral
- objective: Objetivo claro e mensurável do épico
- benefits: Lista de benefícios esperados, formatados como itens de lista

Mantenha o tom profissional e objetivo. Foque em valor de negócio e impacto para o usuário.
`,
	item.TypeStory: `Para histórias, gere ou melhore os seguintes campos:
- description: Descrição no formato "Como [persona], gostaria [necessidade] para [benefício]"
- acceptance_criteria: Lista clara de critérios de aceitação, formatados como itens de lista
- preconditions: Pré-condições necessárias para a história
- rules: Regras de negócio relevantes
- test_scenarios: Cenários de teste para validar a implementação

Mantenha o foco no valor para o usuário e nos resultados esperados.
`,
	item.TypeTask: `Para tasks, gere ou melhore os seguintes campos:
- description: Descrição técnica clara da tarefa a ser realizada
- acceptance_criteria: Critérios objetivos para considerar a task concluída

Seja específico sobre o que precisa ser feito, como deve ser implementado e como será validado.
`,
	item.TypeSubtask: subtaskEnrichHints,
	item.TypeSubBug:  subtaskEnrichHints,
	item.TypeBug: `Para bugs, gere ou melhore os seguintes campos:
- description: Descrição clara do problema
- error_scenario: Descrição detalhada do cenário onde o erro ocorre
- expected_scenario: Comportamento esperado do sistema
- impact: Impacto do bug para usuários e negócio
- steps_to_reproduce: Passos detalhados para reproduzir o bug

Seja preciso e objetivo, fornecendo todas as informações necessárias para que o bug possa ser reproduzido e corrigido.
`,
}

const subtaskEnrichHints = `Para subtasks, gere ou melhore os seguintes campos:
- description: Descrição concisa e específica da subtarefa
- acceptance_criteria: Critérios objetivos para considerar a subtask concluída

Mantenha o escopo bem definido e limitado, focando em uma única responsabilidade.
`

const enrichFormat = `Retorne apenas um objeto JSON válido com os campos enriquecidos.
Mantenha os campos originais que não precisam de enriquecimento.
Não adicione campos que não estavam presentes nos dados originais.
`

func enrichSystemPrompt(t item.Type) string {
	return enrichPreamble + enrichFieldHints[t] + enrichFormat
}

const analyzeSystemPrompt = `Você é um assistente especializado em Product Management.
Sua tarefa é analisar o prompt atual do usuário junto com o contexto histórico
e fornecer insights e sugestões para enriquecer o item atual.

Considere:
1. Itens relacionados no histórico
2. Padrões de nomenclatura e estruturação
3. Dependências potenciais
4. Consistência com itens anteriores

Retorne um objeto JSON com:
- related_items: Itens relacionados do contexto
- suggestions: Sugestões para melhorar o item atual
- dependencies: Possíveis dependências a considerar
- naming_patterns: Padrões de nomenclatura identificados
`
