package pipeline

import "strings"

// Canonical section headings emitted by the manager turn. The prompt pins
// these titles, so extraction matches on them verbatim (case-insensitive).
const (
	SectionSummary      = "Resumo do Projeto"
	SectionStructure    = "Estrutura do Projeto"
	SectionTechnologies = "Tecnologias Recomendadas"
	SectionNextSteps    = "Próximos Passos"
)

// ExtractSection slices the named section out of a free-text model reply.
// Two heading conventions are accepted: a markdown "# " marker or a bare
// occurrence of the section name. Content runs from the line after the
// heading to the next "#" of any level, or to the end of the text. Empty
// text or an empty name yields "".
func ExtractSection(text, sectionName string) string {
	if text == "" || sectionName == "" {
		return ""
	}
	textLower := strings.ToLower(text)
	nameLower := strings.ToLower(sectionName)

	sectionStart := strings.Index(textLower, "# "+nameLower)
	if sectionStart == -1 {
		sectionStart = strings.Index(textLower, nameLower)
		if sectionStart == -1 {
			return ""
		}
	}

	newline := strings.IndexByte(text[sectionStart:], '\n')
	if newline == -1 {
		return ""
	}
	contentStart := sectionStart + newline + 1

	nextSection := strings.IndexByte(text[contentStart:], '#')
	if nextSection == -1 {
		return strings.TrimSpace(text[contentStart:])
	}
	return strings.TrimSpace(text[contentStart : contentStart+nextSection])
}

// ExtractResources converts a bullet/heading block into an ordered list of
// discrete resource strings. Bullet markers are stripped, level-2 headings
// become resource titles, and any other non-blank line is kept verbatim so
// loosely formatted model output still yields usable entries.
func ExtractResources(blockText string) []string {
	resources := []string{}
	for _, line := range strings.Split(blockText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case line == "-", line == "*":
			// bullet marker with no content
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			resources = append(resources, strings.TrimSpace(line[2:]))
		case strings.HasPrefix(line, "## "):
			resources = append(resources, strings.TrimSpace(line[3:]))
		default:
			resources = append(resources, line)
		}
	}
	return resources
}
