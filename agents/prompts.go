package agents

import "fmt"

// SpecialistTask builds the specialist turn instruction. The three-section
// format keeps the answer short enough to extract reliably.
func SpecialistTask(fullDescription string) string {
	return fmt.Sprintf(`Analisar o seguinte projeto e fornecer recomendações técnicas:
%s

Forneça a resposta no seguinte formato:

# Análise Técnica
[Sua análise técnica aqui]

# Estrutura do Projeto
[Estrutura de diretórios e arquivos]

# Tecnologias Recomendadas
[Lista de tecnologias]

Seja conciso e específico.`, fullDescription)
}

// ManagerTask builds the project manager turn instruction. Section titles are
// part of the output contract: the extractor slices the reply on these exact
// headings, so the prompt forbids renaming or reordering them.
func ManagerTask(specialistText, fullDescription string) string {
	if specialistText == "" {
		specialistText = "N/A"
	}
	return fmt.Sprintf(`Com base na análise técnica abaixo:

%s

E na descrição do projeto:

%s

Crie um plano de projeto no formato abaixo, **seguindo rigorosamente os títulos e a estrutura indicada**.
**Não adicione ou remova seções**. **Use exatamente os nomes de seção a seguir.**

---

# Resumo do Projeto
[Forneça um resumo detalhado do projeto incluindo:
- Visão geral completa do projeto e seu propósito
- Principais funcionalidades e recursos
- Público-alvo e necessidades atendidas
- Benefícios e diferenciais do projeto
- Considerações técnicas importantes
Use parágrafos bem estruturados e seja específico.]

# Estrutura do Projeto
[Forneça a estrutura detalhada de diretórios e arquivos, incluindo:
- Organização de pastas e arquivos
- Arquivos de configuração necessários
- Arquivos de dependências
- Arquivos de ambiente
- Estrutura de testes]

# Tecnologias Recomendadas
[Liste todas as tecnologias necessárias, incluindo:
- Frameworks principais
- Bibliotecas essenciais
- Ferramentas de desenvolvimento
- Banco de dados
- Serviços externos]

# Próximos Passos
[Forneça um guia detalhado de implementação, incluindo:

## Configuração e Setup
- Passos para configurar o ambiente de desenvolvimento
- Instalação de dependências
- Configuração de variáveis de ambiente

## Desenvolvimento
- Ordem recomendada de implementação das funcionalidades
- Estratégias de teste
- Documentação necessária

## Dicas e Boas Práticas
- Padrões de código recomendados
- Armadilhas comuns a evitar
- Dicas de performance

## Recursos de Aprendizado
- Documentação oficial relevante
- Tutoriais recomendados
- Comunidades de suporte

## Conselhos para Produção
- Estratégias de deploy
- Monitoramento e logging
- Escalabilidade e segurança
- CI/CD e automação]

Seja específico e forneça exemplos práticos quando possível.`, specialistText, fullDescription)
}

// turnPrompt wraps a task into the single-turn persona prompt sent to the
// model. Kept short to bound latency on large local models.
func turnPrompt(role, taskDescription string) string {
	return fmt.Sprintf(`%s deve responder de forma objetiva e relevante. Tarefa:
%s
Resposta deve ser completa e específica para o projeto.`, role, taskDescription)
}

// tersePrompt is the shorter variant used after a primary-deadline miss.
func tersePrompt(role, taskDescription string) string {
	return fmt.Sprintf(`%s, forneça uma resposta concisa para:
%s`, role, taskDescription)
}
