package export

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

var languages = map[string]string{
	".go":    "go",
	".java":  "java",
	".kt":    "kotlin",
	".scala": "scala",
	".py":    "python",
	".rb":    "ruby",
	".rs":    "rust",
	".js":    "javascript",
	".jsx":   "jsx",
	".ts":    "typescript",
	".tsx":   "tsx",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".php":   "php",
	".sh":    "bash",
	".sql":   "sql",
	".yml":   "yaml",
	".yaml":  "yaml",
	".json":  "json",
	".xml":   "xml",
	".html":  "html",
	".css":   "css",
	".md":    "markdown",
	".tf":    "hcl",
}

// Language returns the code block language hint for a file path, or "".
func Language(filePath string) string {
	return languages[strings.ToLower(path.Ext(filePath))]
}

// FenceCodeBlock wraps code in a fenced block whose backtick fence is longer
// than any backtick run inside code. Invalid UTF-8 and control characters
// other than tab and newline are escaped; the block is still returned along
// with a *FormatError in that case.
func FenceCodeBlock(code, lang string) (string, error) {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.TrimRight(code, "\n")

	var reasons []string
	if !utf8.ValidString(code) {
		code = strings.ToValidUTF8(code, "�")
		reasons = append(reasons, "invalid UTF-8")
	}
	if escaped, n := escapeControls(code); n > 0 {
		code = escaped
		reasons = append(reasons, fmt.Sprintf("%d control character(s) escaped", n))
	}

	fence := strings.Repeat("`", longestBacktickRun(code)+1)
	if len(fence) < 3 {
		fence = "```"
	}

	var sb strings.Builder
	sb.WriteString(fence)
	sb.WriteString(lang)
	sb.WriteString("\n")
	if code != "" {
		sb.WriteString(code)
		sb.WriteString("\n")
	}
	sb.WriteString(fence)
	sb.WriteString("\n")

	if len(reasons) > 0 {
		return sb.String(), &FormatError{Reason: strings.Join(reasons, ", ")}
	}
	return sb.String(), nil
}

func longestBacktickRun(s string) int {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	return longest
}

func escapeControls(s string) (string, int) {
	n := 0
	var sb strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\t' || (r >= 0x20 && r != 0x7f) {
			sb.WriteRune(r)
			continue
		}
		n++
		fmt.Fprintf(&sb, "\\x%02x", r)
	}
	if n == 0 {
		return s, 0
	}
	return sb.String(), n
}
