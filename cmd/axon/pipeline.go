package main

import (
	"fmt"
	"os"

	"axon/internal/ast"
	"axon/internal/lexer"
	"axon/internal/parser"
)

// parseFile reads path and runs it through the lexer and parser, wrapping
// either stage's error with the file path for a clearer CLI message.
func parseFile(path string) (*ast.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	toks, err := lexer.Lex(string(src))
	if err != nil {
		return nil, fmt.Errorf("lex %s: %w", path, err)
	}
	prog, err := parser.Parse(toks)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return prog, nil
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
