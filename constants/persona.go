package constants

import "strings"

// Persona is an audience hint forwarded to exporters for content selection.
// The orchestrator never interprets it beyond statistics bucketing.
type Persona string

const (
	PersonaGeneral   Persona = "general"
	PersonaExecutive Persona = "executive"
	PersonaAnalyst   Persona = "analyst"
	PersonaResearch  Persona = "research"
)

var allPersonas = []Persona{
	PersonaGeneral,
	PersonaExecutive,
	PersonaAnalyst,
	PersonaResearch,
}

func PersonasAsStringSlice() []string {
	result := make([]string, len(allPersonas))
	for i, p := range allPersonas {
		result[i] = string(p)
	}
	return result
}

// CanonicalizePersona lowercases the input and falls back to "general" for
// anything unrecognized.
func CanonicalizePersona(input string) Persona {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, p := range allPersonas {
		if normalized == string(p) {
			return p
		}
	}
	return PersonaGeneral
}
