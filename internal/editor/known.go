package editor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KnownEditors maps editor program names to the argument pattern that
// positions the cursor. Patterns use the same %f/%l/%c placeholders as
// command templates; each pattern word becomes one argument.
type KnownEditors map[string][]string

// DefaultKnownEditors returns the built-in table. Cursor flag syntax per
// editor follows fish-shell's edit_command_buffer function.
func DefaultKnownEditors() KnownEditors {
	return KnownEditors{
		"vi":          {"+%l", "+norm! %c|", "%f"},
		"vim":         {"+%l", "+norm! %c|", "%f"},
		"nvim":        {"+%l", "+norm! %c|", "%f"},
		"emacs":       {"+%l:%c", "%f"},
		"emacsclient": {"+%l:%c", "%f"},
		"gedit":       {"+%l:%c", "%f"},
		"kak":         {"+%l:%c", "%f"},
		"nano":        {"+%l,%c", "%f"},
		"joe":         {"+%l", "%f"},
		"ee":          {"+%l", "%f"},
		"code":        {"--goto", "%f:%l:%c", "--wait"},
		"code-oss":    {"--goto", "%f:%l:%c", "--wait"},
		"subl":        {"%f:%l:%c", "--wait"},
		"micro":       {"%f", "+%l:%c"},
	}
}

// LoadKnownEditors merges user-supplied rows from a YAML file over the
// built-in table. The file maps program names to argument lists:
//
//	helix: ["%f:%l:%c"]
//	vim: ["+%l", "%f"]
func LoadKnownEditors(path string) (KnownEditors, error) {
	table := DefaultKnownEditors()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading editors file: %w", err)
	}

	var custom map[string][]string
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return nil, fmt.Errorf("parsing editors file: %w", err)
	}

	for name, pattern := range custom {
		table[name] = pattern
	}
	return table, nil
}

// Format expands the table row for program into concrete arguments.
// The second return is false when the program is not in the table.
func (k KnownEditors) Format(program, file string, line, col int) ([]string, bool) {
	pattern, ok := k[program]
	if !ok {
		return nil, false
	}

	args := make([]string, len(pattern))
	for i, word := range pattern {
		word = strings.ReplaceAll(word, placeholderFile, file)
		word = strings.ReplaceAll(word, placeholderLine, fmt.Sprint(line))
		word = strings.ReplaceAll(word, placeholderColumn, fmt.Sprint(col))
		args[i] = word
	}
	return args, true
}
