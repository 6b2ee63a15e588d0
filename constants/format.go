package constants

import (
	"strings"
)

// Format identifies a supported export output kind. The orchestrator treats
// formats as opaque registry keys; this enum only fixes the vocabulary.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatXLSX     Format = "xlsx"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatPNG      Format = "png"
)

var allFormats = []Format{
	FormatPDF,
	FormatXLSX,
	FormatCSV,
	FormatJSON,
	FormatHTML,
	FormatMarkdown,
	FormatPNG,
}

// AllFormats returns the supported formats in a stable order.
func AllFormats() []Format {
	out := make([]Format, len(allFormats))
	copy(out, allFormats)
	return out
}

func FormatsAsStringSlice() []string {
	result := make([]string, len(allFormats))
	for i, f := range allFormats {
		result[i] = string(f)
	}
	return result
}

// CanonicalizeFormat maps loose user input ("Excel", ".PDF", "md") onto the
// canonical format key. The second return is false when nothing matched.
func CanonicalizeFormat(input string) (Format, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.TrimPrefix(normalized, ".")

	// synonyms map
	synonyms := map[string]Format{
		"excel":       FormatXLSX,
		"xls":         FormatXLSX,
		"spreadsheet": FormatXLSX,
		"md":          FormatMarkdown,
		"htm":         FormatHTML,
		"image":       FormatPNG,
		"chart":       FormatPNG,
	}

	if f, ok := synonyms[normalized]; ok {
		return f, true
	}

	for _, f := range allFormats {
		if normalized == string(f) {
			return f, true
		}
	}

	return "", false
}
