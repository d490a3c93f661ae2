package cli

import (
	"fmt"
	"strings"
	"unicode"
)

// Command is one parsed REPL line.
type Command struct {
	Name string
	Args []string
}

// Parse splits a line into whitespace separated words. Double quotes group
// words into one argument; a backslash escapes the next character inside
// quotes.
func Parse(line string) (Command, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		inQuote bool
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
			inWord = true
		case !inQuote && unicode.IsSpace(r):
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}

	if inQuote || escaped {
		return Command{}, fmt.Errorf("unterminated quote in %q", line)
	}
	if inWord {
		words = append(words, cur.String())
	}

	if len(words) == 0 {
		return Command{}, nil
	}
	return Command{Name: words[0], Args: words[1:]}, nil
}
