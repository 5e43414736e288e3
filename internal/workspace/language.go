package workspace

// LanguageDatabase resolves a language id for a file path when the
// caller opens a document without naming one explicitly. spec.md §9
// asks for the source's process-wide grammar/language registry to be
// re-architected as an injected value; lspkit ships
// DefaultLanguageDatabase as the built-in population step a library
// still needs to be useful out of the box.
type LanguageDatabase interface {
	LanguageForPath(path string) (id string, ok bool)
}

// defaultLanguageDatabase is a fixed extension-to-language mapping,
// the same shape document.Open falls back to when a workspace supplies
// no database of its own.
type defaultLanguageDatabase struct {
	byExtension map[string]string
}

// DefaultLanguageDatabase returns the built-in extension→language-id
// table.
func DefaultLanguageDatabase() LanguageDatabase {
	return defaultLanguageDatabase{byExtension: map[string]string{
		".go":   "go",
		".py":   "python",
		".ts":   "typescript",
		".tsx":  "typescriptreact",
		".js":   "javascript",
		".jsx":  "javascriptreact",
		".rs":   "rust",
		".c":    "c",
		".h":    "c",
		".cpp":  "cpp",
		".hpp":  "cpp",
		".java": "java",
		".rb":   "ruby",
		".md":   "markdown",
		".json": "json",
		".yaml": "yaml",
		".yml":  "yaml",
		".sh":   "shellscript",
	}}
}

func (d defaultLanguageDatabase) LanguageForPath(path string) (string, bool) {
	ext := extOf(path)
	lang, ok := d.byExtension[ext]
	return lang, ok
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}
