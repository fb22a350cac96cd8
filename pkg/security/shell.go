package security

import (
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ShellCommands decomposes `bash|zsh|sh -c|-lc <script>` into the plain
// commands of the script. Only word lists joined by &&, ||, ; and | are
// accepted. Anything else (expansions, redirections, subshells,
// assignments, background jobs) makes it report false, and the caller
// falls back to the whole argv.
func ShellCommands(argv []string) ([][]string, bool) {
	if len(argv) != 3 {
		return nil, false
	}
	switch filepath.Base(argv[0]) {
	case "bash", "zsh", "sh":
	default:
		return nil, false
	}
	if argv[1] != "-c" && argv[1] != "-lc" {
		return nil, false
	}

	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(argv[2]), "")
	if err != nil {
		return nil, false
	}

	var commands [][]string
	for _, stmt := range file.Stmts {
		if !collectStmt(stmt, &commands) {
			return nil, false
		}
	}
	if len(commands) == 0 {
		return nil, false
	}
	return commands, true
}

func collectStmt(stmt *syntax.Stmt, out *[][]string) bool {
	if stmt == nil || stmt.Negated || stmt.Background || stmt.Coprocess || len(stmt.Redirs) > 0 {
		return false
	}

	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		if len(cmd.Assigns) > 0 || len(cmd.Args) == 0 {
			return false
		}
		words := make([]string, 0, len(cmd.Args))
		for _, w := range cmd.Args {
			s, ok := plainWord(w)
			if !ok {
				return false
			}
			words = append(words, s)
		}
		*out = append(*out, words)
		return true

	case *syntax.BinaryCmd:
		switch cmd.Op {
		case syntax.AndStmt, syntax.OrStmt, syntax.Pipe:
		default:
			return false
		}
		return collectStmt(cmd.X, out) && collectStmt(cmd.Y, out)

	default:
		return false
	}
}

// plainWord returns the literal value of a word made only of unquoted
// literals and quoted strings without expansions.
func plainWord(w *syntax.Word) (string, bool) {
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			if strings.ContainsRune(p.Value, '\\') {
				return "", false
			}
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			if p.Dollar {
				return "", false
			}
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			if p.Dollar {
				return "", false
			}
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok || strings.ContainsRune(lit.Value, '\\') {
					return "", false
				}
				sb.WriteString(lit.Value)
			}
		default:
			return "", false
		}
	}
	return sb.String(), true
}
