package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/codesprintlab/planforge/agents"
	"github.com/codesprintlab/planforge/framework"
)

// ErrInvalidDescription is the single error-shaped exit of the pipeline.
// Every other failure degrades into plan content instead.
var ErrInvalidDescription = errors.New("description missing or too short")

// minDescriptionLen is the shortest brief accepted before any agent runs.
const minDescriptionLen = 3

// Request is the immutable input of one pipeline run. The JSON tags match
// the wire contract expected by the frontend.
type Request struct {
	Areas       []string `json:"areas"`
	TechStack   string   `json:"tecnologias"`
	Description string   `json:"descricao"`
	UseSearch   bool     `json:"usar_exa"`
}

// areasOrEmpty keeps the areas field a JSON array even when the caller
// omitted it.
func (r Request) areasOrEmpty() []string {
	if r.Areas == nil {
		return []string{}
	}
	return r.Areas
}

// Plan is the structured result returned to the HTTP layer. Code is a
// reserved field kept for wire compatibility; it is always empty.
type Plan struct {
	Summary      string   `json:"resumo"`
	Technologies string   `json:"tecnologias"`
	Areas        []string `json:"areas"`
	Structure    string   `json:"estrutura"`
	Code         string   `json:"codigo"`
	Resources    []string `json:"recursos"`
}

// AgentRunner runs one agent turn. Satisfied by *agents.Executor; tests swap
// in stubs with call counters.
type AgentRunner interface {
	Execute(ctx context.Context, profile agents.Profile, taskDescription string) agents.Result
}

// Searcher is the optional external search collaborator. Its failure must
// never fail the pipeline.
type Searcher interface {
	Search(ctx context.Context, query string, numResults int) ([]string, error)
}

// Generator composes the fixed two-turn pipeline: one specialist persona
// picked from the requested areas, then a project manager persona that
// consolidates the analysis into the final plan.
type Generator struct {
	Runner    AgentRunner
	Search    Searcher
	Telemetry framework.Telemetry
	Logger    *log.Logger

	// OverallTimeout is the wall-clock budget for a whole run. When spent
	// after the specialist turn, the manager turn is skipped and a degraded
	// plan is returned immediately.
	OverallTimeout time.Duration

	// SearchResults caps how many supplementary snippets are requested from
	// the search collaborator.
	SearchResults int
}

const defaultOverallTimeout = 15 * time.Minute

// Run executes the pipeline. Apart from the validation exit it always
// returns a well-formed Plan: timeouts, transport errors, and malformed
// model output degrade into deterministic fallback content, and a top-level
// recover converts any unexpected panic into an apologetic plan.
func (g *Generator) Run(ctx context.Context, req Request) (plan Plan, err error) {
	logger := g.logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Printf("pipeline panic recovered: %v", r)
			framework.Emit(g.Telemetry, framework.Event{
				Type:     framework.EventPipelineDegraded,
				Message:  "panic recovered",
				Metadata: map[string]interface{}{"panic": fmt.Sprint(r)},
			})
			plan = g.apologeticPlan(req)
			err = nil
		}
	}()

	if len(strings.TrimSpace(req.Description)) < minDescriptionLen {
		logger.Printf("rejecting request: description missing or too short")
		return Plan{}, ErrInvalidDescription
	}

	framework.Emit(g.Telemetry, framework.Event{
		Type:     framework.EventPipelineStart,
		Metadata: map[string]interface{}{"areas": req.Areas, "tech_stack": req.TechStack},
	})
	logger.Printf("starting project generation: areas=%v tech=%s", req.Areas, req.TechStack)

	description := g.augmentDescription(ctx, req)
	fullDescription := composeDescription(description, req.TechStack, req.Areas)

	specialist := agents.SpecialistFor(req.Areas)
	manager := agents.ManagerProfile()
	logger.Printf("agents created: %s, %s", specialist.Role, manager.Role)

	budget := g.OverallTimeout
	if budget <= 0 {
		budget = defaultOverallTimeout
	}
	start := time.Now()

	specialistResult := g.Runner.Execute(ctx, specialist, agents.SpecialistTask(fullDescription))

	if time.Since(start) > budget {
		logger.Printf("overall budget spent during specialist turn, skipping manager")
		framework.Emit(g.Telemetry, framework.Event{
			Type:    framework.EventPipelineDegraded,
			Message: "overall budget exceeded",
		})
		return g.budgetPlan(req), nil
	}

	if !specialistResult.Succeeded || specialistResult.Text == "" {
		logger.Printf("specialist result invalid, retrying once")
		specialistResult = g.Runner.Execute(ctx, specialist, agents.SpecialistTask(fullDescription))
	}

	managerResult := g.Runner.Execute(ctx, manager, agents.ManagerTask(specialistResult.Text, fullDescription))
	if !managerResult.Succeeded || managerResult.Text == "" {
		logger.Printf("manager result invalid, retrying once")
		managerResult = g.Runner.Execute(ctx, manager, agents.ManagerTask(specialistResult.Text, fullDescription))
	}

	resultText := managerResult.Text
	if resultText == "" {
		resultText = specialistResult.Text
	}
	if resultText == "" {
		resultText = "Não foi possível gerar resultado completo"
	}

	plan = g.assemble(req, resultText)
	framework.Emit(g.Telemetry, framework.Event{
		Type: framework.EventPipelineFinish,
		Metadata: map[string]interface{}{
			"elapsed":   time.Since(start).String(),
			"resources": len(plan.Resources),
		},
	})
	logger.Printf("project generated in %s (%d resources)", time.Since(start).Round(time.Millisecond), len(plan.Resources))
	return plan, nil
}

// augmentDescription appends supplementary search snippets when requested.
// Collaborator failure is logged and the original description proceeds.
func (g *Generator) augmentDescription(ctx context.Context, req Request) string {
	if !req.UseSearch || g.Search == nil {
		return req.Description
	}
	numResults := g.SearchResults
	if numResults <= 0 {
		numResults = 5
	}
	results, err := g.Search.Search(ctx, req.Description, numResults)
	if err != nil {
		g.logger().Printf("external search failed, continuing without it: %v", err)
		return req.Description
	}
	framework.Emit(g.Telemetry, framework.Event{
		Type:     framework.EventSearch,
		Metadata: map[string]interface{}{"results": len(results)},
	})
	if len(results) == 0 {
		return req.Description
	}
	return req.Description + "\n\nResultados da EXA:\n" + strings.Join(results, "\n")
}

// assemble extracts the canonical sections from the final result text and
// fills every missing field with a deterministic fallback.
func (g *Generator) assemble(req Request, resultText string) Plan {
	summary := ExtractSection(resultText, SectionSummary)
	structure := ExtractSection(resultText, SectionStructure)
	technologies := ExtractSection(resultText, SectionTechnologies)
	nextSteps := ExtractSection(resultText, SectionNextSteps)
	resources := ExtractResources(nextSteps)

	if summary == "" {
		summary = truncateRunes(resultText, 250)
	}
	if technologies == "" {
		technologies = req.TechStack
	}
	if structure == "" {
		structure = fmt.Sprintf("Estrutura padrão para %s", req.TechStack)
	}
	return Plan{
		Summary:      summary,
		Technologies: technologies,
		Areas:        req.areasOrEmpty(),
		Structure:    structure,
		Code:         "",
		Resources:    resources,
	}
}

// budgetPlan is returned when the overall wall-clock budget is spent.
func (g *Generator) budgetPlan(req Request) Plan {
	return Plan{
		Summary:      fmt.Sprintf("Análise básica com %s", req.TechStack),
		Technologies: req.TechStack,
		Areas:        req.areasOrEmpty(),
		Structure:    fmt.Sprintf("Estrutura padrão para projeto com %s", req.TechStack),
		Code:         "",
		Resources:    []string{},
	}
}

// apologeticPlan is the last-resort output of the top-level recover.
func (g *Generator) apologeticPlan(req Request) Plan {
	return Plan{
		Summary:      fmt.Sprintf("Não foi possível processar completamente o projeto com %s. Por favor, tente novamente.", req.TechStack),
		Technologies: req.TechStack,
		Areas:        req.areasOrEmpty(),
		Structure:    "",
		Code:         "",
		Resources:    []string{},
	}
}

func (g *Generator) logger() *log.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return log.Default()
}

// composeDescription builds the consolidated brief handed to both agents.
func composeDescription(description, techStack string, areas []string) string {
	return fmt.Sprintf(`# Descrição do Projeto
%s

# Tecnologias Especificadas
%s

# Áreas Selecionadas
%s

Por favor, analise cuidadosamente os requisitos acima e forneça uma análise técnica detalhada.`,
		description, techStack, strings.Join(areas, ", "))
}

// truncateRunes shortens s to at most n runes without splitting a
// multi-byte character.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
