// Package lexer defines the tokens, spans and scanner interface consumed by the streaming engine.
//
// The primary interface is Scanner, which tokenizes one complete text. Participle
// lexer definitions can be used as Scanners via Participle.
package lexer
