package agents

// Profile is a named persona used to frame one model prompt. Profiles are
// created per pipeline run and carry no state across turns.
type Profile struct {
	Role      string
	Goal      string
	Backstory string
}

// Result captures the outcome of a single agent turn. A failed turn still
// carries human-readable fallback text so downstream consumers are never
// handed empty input.
type Result struct {
	AgentRole string
	Text      string
	Succeeded bool
}

// area keywords recognized when picking the specialist persona, in priority
// order. The first hit wins; unmatched or empty selections fall back to the
// web specialist.
var specialistPriority = []struct {
	areas   []string
	profile Profile
}{
	{
		areas: []string{"Web"},
		profile: Profile{
			Role:      "Especialista Web",
			Goal:      "Definir arquitetura técnica completa",
			Backstory: "Especialista em desenvolvimento web full-stack.",
		},
	},
	{
		areas: []string{"Mobile"},
		profile: Profile{
			Role:      "Especialista Mobile",
			Goal:      "Definir arquitetura técnica completa",
			Backstory: "Especialista em desenvolvimento mobile com React Native ou Flutter.",
		},
	},
	{
		areas: []string{"Desktop"},
		profile: Profile{
			Role:      "Especialista Desktop",
			Goal:      "Definir arquitetura técnica completa",
			Backstory: "Especialista em aplicações desktop.",
		},
	},
	{
		areas: []string{"API"},
		profile: Profile{
			Role:      "Especialista Backend/API",
			Goal:      "Definir arquitetura técnica completa",
			Backstory: "Especialista em desenvolvimento backend e APIs.",
		},
	},
	{
		areas: []string{"Inteligência Artificial", "Machine Learning"},
		profile: Profile{
			Role:      "Especialista IA/ML",
			Goal:      "Definir arquitetura técnica completa",
			Backstory: "Especialista em IA/ML e implementações práticas.",
		},
	},
	{
		areas: []string{"Jogos"},
		profile: Profile{
			Role:      "Especialista em Jogos",
			Goal:      "Definir arquitetura técnica completa",
			Backstory: "Especialista em desenvolvimento de jogos.",
		},
	},
}

// SpecialistFor picks exactly one primary specialist persona for the selected
// areas. A single specialist trades breadth for latency: running one agent
// per area was measured to be too slow against large local models.
func SpecialistFor(selectedAreas []string) Profile {
	for _, entry := range specialistPriority {
		for _, want := range entry.areas {
			for _, area := range selectedAreas {
				if area == want {
					return entry.profile
				}
			}
		}
	}
	return specialistPriority[0].profile
}

// ManagerProfile returns the project manager persona that consolidates the
// specialist analysis into the final plan.
func ManagerProfile() Profile {
	return Profile{
		Role:      "Gerente de Projeto",
		Goal:      "Organizar o plano de projeto",
		Backstory: "Gerente de projeto técnico com foco em entrega prática.",
	}
}
