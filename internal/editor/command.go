// Package editor launches the configured editor command on a workspace
// file and reports its exit as an asynchronous event.
package editor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// Placeholders recognized in the command template's arguments.
const (
	placeholderFile   = "%f"
	placeholderLine   = "%l"
	placeholderColumn = "%c"
)

// ErrEmptyCommand reports a template that parsed to nothing.
var ErrEmptyCommand = errors.New("empty editor command")

// BuildArgs expands an editor command template into an argv ready to exec.
//
// The template is split with shell quoting rules. Occurrences of %f, %l and
// %c in argument words (never the program word) are replaced with the file
// path, cursor line and cursor column. Templates without any placeholder
// fall back to the known-editor table keyed on the command's program name;
// unrecognized programs simply get the file path appended.
func BuildArgs(template, file string, line, col int, known KnownEditors) ([]string, error) {
	words, err := shell.Fields(template, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing editor command: %w", err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyCommand
	}

	if hasPlaceholder(words[1:]) {
		for i := 1; i < len(words); i++ {
			words[i] = strings.ReplaceAll(words[i], placeholderFile, file)
			words[i] = strings.ReplaceAll(words[i], placeholderLine, strconv.Itoa(line))
			words[i] = strings.ReplaceAll(words[i], placeholderColumn, strconv.Itoa(col))
		}
		return words, nil
	}

	// The last word, not the first, names the editor: templates like
	// "flatpak run org.gnome.gedit" put launchers in front.
	program := filepath.Base(words[len(words)-1])
	if extra, ok := known.Format(program, file, line, col); ok {
		return append(words, extra...), nil
	}

	return append(words, file), nil
}

func hasPlaceholder(args []string) bool {
	for _, a := range args {
		if strings.Contains(a, placeholderFile) ||
			strings.Contains(a, placeholderLine) ||
			strings.Contains(a, placeholderColumn) {
			return true
		}
	}
	return false
}
