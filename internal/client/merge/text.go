package merge

import (
	"path"
	"strings"
)

var textExtensions = map[string]struct{}{}

func init() {
	for _, ext := range []string{
		"md", "markdown", "txt", "text", "csv", "tsv", "json", "yaml", "yml", "toml", "xml",
		"html", "htm", "css", "js", "ts", "go", "py", "rs", "java", "c", "h", "cpp",
		"sh", "sql", "ini", "cfg", "conf", "log",
	} {
		textExtensions[ext] = struct{}{}
	}
}

// IsText reports whether a file name has an extension whose content can be merged line by line
func IsText(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	_, ok := textExtensions[ext]
	return ok
}
