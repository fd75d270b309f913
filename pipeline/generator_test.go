package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codesprintlab/planforge/agents"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const managerDocument = `# Resumo do Projeto
Um gerenciador de tarefas com autenticação e quadros compartilhados.

# Estrutura do Projeto
src/
  app/
  tests/

# Tecnologias Recomendadas
Python, FastAPI, PostgreSQL

# Próximos Passos
- Configurar ambiente virtual
- Criar modelos de dados
* Escrever testes`

// stubRunner answers each role with a canned document and records every
// task it receives.
type stubRunner struct {
	mu      sync.Mutex
	calls   int
	tasks   []string
	replies map[string][]agents.Result
}

func (s *stubRunner) Execute(ctx context.Context, profile agents.Profile, task string) agents.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.tasks = append(s.tasks, task)
	queue := s.replies[profile.Role]
	if len(queue) == 0 {
		return agents.Result{AgentRole: profile.Role, Text: managerDocument, Succeeded: true}
	}
	result := queue[0]
	if len(queue) > 1 {
		s.replies[profile.Role] = queue[1:]
	}
	return result
}

func (s *stubRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSearcher struct {
	results []string
	err     error
	calls   int
}

func (s *stubSearcher) Search(ctx context.Context, query string, numResults int) ([]string, error) {
	s.calls++
	return s.results, s.err
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestRunReturnsCompletePlan(t *testing.T) {
	runner := &stubRunner{}
	g := &Generator{Runner: runner, Logger: quietLogger()}

	plan, err := g.Run(context.Background(), Request{
		Areas:       []string{"Web", "API"},
		TechStack:   "Python, FastAPI",
		Description: "A task manager app",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Web", "API"}, plan.Areas)
	assert.NotEmpty(t, plan.Summary)
	assert.NotEmpty(t, plan.Technologies)
	assert.NotEmpty(t, plan.Structure)
	assert.Empty(t, plan.Code)
	assert.NotNil(t, plan.Resources)
	// specialist turn + manager turn
	assert.Equal(t, 2, runner.callCount())
}

func TestRunExtractsStructureExactly(t *testing.T) {
	runner := &stubRunner{}
	g := &Generator{Runner: runner, Logger: quietLogger()}

	plan, err := g.Run(context.Background(), Request{
		Areas:       []string{"Web"},
		TechStack:   "Python, FastAPI",
		Description: "A task manager app",
	})
	require.NoError(t, err)

	assert.Equal(t, "src/\n  app/\n  tests/", plan.Structure)
	assert.Equal(t, "Um gerenciador de tarefas com autenticação e quadros compartilhados.", plan.Summary)
	assert.Equal(t, "Python, FastAPI, PostgreSQL", plan.Technologies)
	assert.Equal(t, []string{"Configurar ambiente virtual", "Criar modelos de dados", "Escrever testes"}, plan.Resources)
}

func TestRunRejectsShortDescriptionWithoutAgentCalls(t *testing.T) {
	runner := &stubRunner{}
	searcher := &stubSearcher{}
	g := &Generator{Runner: runner, Search: searcher, Logger: quietLogger()}

	_, err := g.Run(context.Background(), Request{Description: "ab", UseSearch: true})
	assert.ErrorIs(t, err, ErrInvalidDescription)
	assert.Equal(t, 0, runner.callCount())
	assert.Equal(t, 0, searcher.calls)
}

func TestRunFallbacksWhenSectionsMissing(t *testing.T) {
	freeText := strings.Repeat("uma análise livre sem nenhuma seção formatada ", 10)
	runner := &stubRunner{replies: map[string][]agents.Result{
		"Gerente de Projeto": {{AgentRole: "Gerente de Projeto", Text: freeText, Succeeded: true}},
	}}
	g := &Generator{Runner: runner, Logger: quietLogger()}

	plan, err := g.Run(context.Background(), Request{
		Areas:       []string{"Web"},
		TechStack:   "Go, Postgres",
		Description: "Um sistema de estoque",
	})
	require.NoError(t, err)

	assert.Len(t, []rune(plan.Summary), 250)
	assert.Equal(t, "Go, Postgres", plan.Technologies)
	assert.Equal(t, "Estrutura padrão para Go, Postgres", plan.Structure)
	assert.Empty(t, plan.Resources)
}

func TestRunRetriesFailedManagerThenUsesSpecialistText(t *testing.T) {
	specialistText := "# Análise Técnica\nanálise detalhada do especialista\n# Estrutura do Projeto\nsrc/"
	runner := &stubRunner{replies: map[string][]agents.Result{
		"Especialista Web": {{AgentRole: "Especialista Web", Text: specialistText, Succeeded: true}},
		"Gerente de Projeto": {
			{AgentRole: "Gerente de Projeto", Succeeded: false},
			{AgentRole: "Gerente de Projeto", Succeeded: false},
		},
	}}
	g := &Generator{Runner: runner, Logger: quietLogger()}

	plan, err := g.Run(context.Background(), Request{
		Areas:       []string{"Web"},
		TechStack:   "Go",
		Description: "Uma API de pagamentos",
	})
	require.NoError(t, err)

	// specialist once, manager twice
	assert.Equal(t, 3, runner.callCount())
	assert.Equal(t, "src/", plan.Structure)
}

func TestRunShortCircuitsOnOverallBudget(t *testing.T) {
	runner := &stubRunner{replies: map[string][]agents.Result{
		"Especialista Web": {{
			AgentRole: "Especialista Web",
			Text:      "análise",
			Succeeded: true,
		}},
	}}
	g := &Generator{Runner: runner, Logger: quietLogger(), OverallTimeout: time.Nanosecond}

	plan, err := g.Run(context.Background(), Request{
		Areas:       []string{"Web"},
		TechStack:   "Rust",
		Description: "Um jogo multiplayer",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, runner.callCount())
	assert.Equal(t, "Análise básica com Rust", plan.Summary)
	assert.Equal(t, "Estrutura padrão para projeto com Rust", plan.Structure)
	assert.Equal(t, []string{"Web"}, plan.Areas)
	assert.Empty(t, plan.Resources)
}

func TestRunSearchFailureKeepsOriginalDescription(t *testing.T) {
	runner := &stubRunner{}
	searcher := &stubSearcher{err: errors.New("exa unavailable")}
	g := &Generator{Runner: runner, Search: searcher, Logger: quietLogger()}

	_, err := g.Run(context.Background(), Request{
		Areas:       []string{"Web"},
		TechStack:   "Go",
		Description: "Um blog pessoal",
		UseSearch:   true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, searcher.calls)
	assert.NotContains(t, runner.tasks[0], "Resultados da EXA")
	assert.Contains(t, runner.tasks[0], "Um blog pessoal")
}

func TestRunSearchResultsAppendedToDescription(t *testing.T) {
	runner := &stubRunner{}
	searcher := &stubSearcher{results: []string{"insight um", "insight dois"}}
	g := &Generator{Runner: runner, Search: searcher, Logger: quietLogger()}

	_, err := g.Run(context.Background(), Request{
		Areas:       []string{"Web"},
		TechStack:   "Go",
		Description: "Um blog pessoal",
		UseSearch:   true,
	})
	require.NoError(t, err)
	assert.Contains(t, runner.tasks[0], "Resultados da EXA:\ninsight um\ninsight dois")
}

// panicRunner triggers the top-level recover path.
type panicRunner struct{}

func (panicRunner) Execute(ctx context.Context, profile agents.Profile, task string) agents.Result {
	panic("unexpected internal failure")
}

func TestRunRecoversFromPanic(t *testing.T) {
	g := &Generator{Runner: panicRunner{}, Logger: quietLogger()}

	plan, err := g.Run(context.Background(), Request{
		Areas:       []string{"Mobile"},
		TechStack:   "Flutter",
		Description: "Um app de receitas",
	})
	require.NoError(t, err)

	assert.Contains(t, plan.Summary, "Flutter")
	assert.Contains(t, plan.Summary, "tente novamente")
	assert.Equal(t, []string{"Mobile"}, plan.Areas)
	assert.NotNil(t, plan.Resources)
}

func TestRunConcurrentInvocationsAreIsolated(t *testing.T) {
	runner := &stubRunner{}
	g := &Generator{Runner: runner, Logger: quietLogger()}

	const n = 8
	var wg sync.WaitGroup
	plans := make([]Plan, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plans[i], errs[i] = g.Run(context.Background(), Request{
				Areas:       []string{fmt.Sprintf("Area-%d", i), "Web"},
				TechStack:   fmt.Sprintf("stack-%d", i),
				Description: fmt.Sprintf("projeto número %d", i),
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []string{fmt.Sprintf("Area-%d", i), "Web"}, plans[i].Areas)
	}
}
