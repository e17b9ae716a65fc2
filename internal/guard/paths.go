package guard

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// pathParamNames are keyword-argument keys commonly carrying file paths.
// The extraction is a best-effort heuristic: it can both over- and
// under-match, and the matching semantics are load-bearing for callers.
var pathParamNames = map[string]struct{}{
	"path":        {},
	"file":        {},
	"filepath":    {},
	"file_path":   {},
	"filename":    {},
	"source":      {},
	"destination": {},
	"src":         {},
	"dst":         {},
	"paths":       {},
}

// BaseToolName strips a server prefix from a tool name. Servers prefix their
// tools to avoid collisions (gh_create_issue, mem_read_graph); the base name
// is the part after the first underscore when the leading segment is at most
// maxPrefixLen runes. Names without such a segment are returned unchanged.
func BaseToolName(name string, maxPrefixLen int) string {
	if maxPrefixLen <= 0 {
		maxPrefixLen = defaultPrefixMaxLen
	}
	prefix, rest, found := strings.Cut(name, "_")
	if !found || rest == "" {
		return name
	}
	if utf8.RuneCountInString(prefix) <= maxPrefixLen {
		return rest
	}
	return name
}

// ExtractPaths pulls candidate file paths out of a tool call's arguments:
// known path-named keyword arguments (string or list-of-string values), plus
// positional string arguments that contain a path-indicating character.
func ExtractPaths(args []any, kwargs map[string]any) []string {
	var paths []string

	for key, value := range kwargs {
		if _, ok := pathParamNames[strings.ToLower(key)]; !ok {
			continue
		}
		paths = append(paths, stringValues(value)...)
	}

	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			if looksLikePath(v) {
				paths = append(paths, v)
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && looksLikePath(s) {
					paths = append(paths, s)
				}
			}
		case []string:
			for _, s := range v {
				if looksLikePath(s) {
					paths = append(paths, s)
				}
			}
		}
	}

	return paths
}

func stringValues(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func looksLikePath(s string) bool {
	return strings.ContainsAny(s, `/\.`)
}

// normalizePath lowercases a path and converts backslashes so pattern and
// zone matching behave the same on Windows-style input.
func normalizePath(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, `\`, "/"))
}

func baseName(normalized string) string {
	if i := strings.LastIndexByte(normalized, '/'); i >= 0 {
		return normalized[i+1:]
	}
	return normalized
}

// globCache caches compiled pattern regexps; the pattern universe is the
// small, fixed set of registered rules.
var globCache sync.Map // pattern string -> *regexp.Regexp

// globMatch reports whether name matches the shell-style pattern. Unlike
// path.Match, '*' also crosses path separators, so patterns like
// "*/.ssh/*" match full absolute paths.
func globMatch(pattern, name string) bool {
	re, ok := globCache.Load(pattern)
	if !ok {
		var b strings.Builder
		b.WriteString("^")
		for _, r := range pattern {
			switch r {
			case '*':
				b.WriteString(".*")
			case '?':
				b.WriteString(".")
			default:
				b.WriteString(regexp.QuoteMeta(string(r)))
			}
		}
		b.WriteString("$")
		compiled, err := regexp.Compile(b.String())
		if err != nil {
			return false
		}
		re, _ = globCache.LoadOrStore(pattern, compiled)
	}
	return re.(*regexp.Regexp).MatchString(name)
}
