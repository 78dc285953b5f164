package rag

import (
	"regexp"
	"strings"

	"github.com/b08x/blueprints-rag/internal/store"
)

// CodeFeatures are structural properties of a blueprint's code, computed
// once per ingestion.
type CodeFeatures struct {
	Language      string   `json:"language"`
	LineCount     int      `json:"line_count"`
	FunctionCount int      `json:"function_count"`
	CommentRatio  float64  `json:"comment_ratio"`
	Complexity    float64  `json:"complexity"`
	Patterns      []string `json:"patterns,omitempty"`
	Imports       []string `json:"imports,omitempty"`
}

var (
	funcPatterns = map[string]*regexp.Regexp{
		"go":         regexp.MustCompile(`(?m)^\s*func\s+\w`),
		"ruby":       regexp.MustCompile(`(?m)^\s*def\s+\w`),
		"python":     regexp.MustCompile(`(?m)^\s*def\s+\w`),
		"javascript": regexp.MustCompile(`(?m)(^\s*function\s+\w|=>\s*\{)`),
	}
	importPatterns = map[string]*regexp.Regexp{
		"go":         regexp.MustCompile(`(?m)^\s*(?:import\s+)?(?:\w+\s+)?"([^"]+)"`),
		"ruby":       regexp.MustCompile(`(?m)^\s*require(?:_relative)?\s+['"]([^'"]+)['"]`),
		"python":     regexp.MustCompile(`(?m)^\s*(?:import|from)\s+([\w.]+)`),
		"javascript": regexp.MustCompile(`(?m)(?:require\(|from\s+)['"]([^'"]+)['"]`),
	}
	branchPattern = regexp.MustCompile(`(?m)\b(if|else|elsif|elif|case|when|switch|for|while|until|rescue|catch|select)\b`)
)

// ExtractCodeFeatures computes the structural features of a blueprint.
func ExtractCodeFeatures(bp *store.Blueprint) CodeFeatures {
	features := CodeFeatures{
		Language: detectLanguage(bp),
	}
	code := bp.Code
	if code == "" {
		return features
	}

	lines := strings.Split(code, "\n")
	comments := 0
	nonEmpty := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonEmpty++
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "--") || strings.HasPrefix(trimmed, "*") {
			comments++
		}
	}
	features.LineCount = len(lines)
	if nonEmpty > 0 {
		features.CommentRatio = float64(comments) / float64(nonEmpty)
	}

	if re, ok := funcPatterns[features.Language]; ok {
		features.FunctionCount = len(re.FindAllString(code, -1))
	} else {
		// Without a language match, count anything that looks like a
		// definition.
		features.FunctionCount = len(regexp.MustCompile(`(?m)^\s*(func|def|function)\s`).FindAllString(code, -1))
	}

	// Branching keywords per non-empty line, scaled so ~1 branch every 5
	// lines saturates.
	branches := len(branchPattern.FindAllString(code, -1))
	if nonEmpty > 0 {
		features.Complexity = clamp(float64(branches) / float64(nonEmpty) * 5)
	}

	if re, ok := importPatterns[features.Language]; ok {
		seen := make(map[string]struct{})
		for _, match := range re.FindAllStringSubmatch(code, -1) {
			name := match[len(match)-1]
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			features.Imports = append(features.Imports, name)
		}
	}

	features.Patterns = detectPatterns(code)
	return features
}

// detectLanguage prefers an explicit language tag, then falls back to
// surface heuristics.
func detectLanguage(bp *store.Blueprint) string {
	known := map[string]bool{
		"go": true, "ruby": true, "python": true, "javascript": true,
		"typescript": true, "rust": true, "java": true, "c": true, "shell": true,
	}
	for _, tag := range bp.Tags {
		if known[strings.ToLower(tag)] {
			return strings.ToLower(tag)
		}
	}

	code := bp.Code
	switch {
	case strings.Contains(code, "package ") && strings.Contains(code, "func "):
		return "go"
	case strings.Contains(code, "def ") && strings.Contains(code, "end"):
		return "ruby"
	case strings.Contains(code, "def ") && strings.Contains(code, ":"):
		return "python"
	case strings.Contains(code, "function ") || strings.Contains(code, "=>"):
		return "javascript"
	default:
		return "unknown"
	}
}

// detectPatterns spots a few coarse structural patterns by keyword.
func detectPatterns(code string) []string {
	var patterns []string
	checks := []struct {
		name    string
		markers []string
	}{
		{"class_based", []string{"class ", "type ", "struct "}},
		{"error_handling", []string{"rescue", "except", "catch", "err != nil"}},
		{"concurrency", []string{"go func", "Thread.new", "async ", "goroutine", "Mutex"}},
		{"testing", []string{"func Test", "def test_", "describe(", "it("}},
	}
	for _, check := range checks {
		for _, marker := range check.markers {
			if strings.Contains(code, marker) {
				patterns = append(patterns, check.name)
				break
			}
		}
	}
	return patterns
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
