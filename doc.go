// Package streamparse parses unbounded streams of text incrementally, in bounded memory.
//
// Input arrives in chunks of arbitrary size. Chunks are lexed into tokens with
// a grammar supplied Scanner, tokens are split into independent units at
// record delimiters by a BoundaryPolicy, and each unit is parsed by the
// grammar's parser:
//
//	chunks -> Lexer -> tokens -> Buffer -> Parser -> units
//
// A Pipeline runs lexing and parsing as two stages connected by bounded
// queues:
//
//	p, err := streamparse.NewPipeline[*jsonl.Line](ctx, jsonl.New())
//	...
//	go func() {
//		for chunk := range chunks {
//			if err := p.Feed(chunk); err != nil {
//				...
//			}
//		}
//		p.Finish()
//	}()
//	for {
//		line, err := p.Next(ctx)
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		...
//	}
//
// The output is independent of how the input is split into chunks. Every
// resource is bounded by a Budget, and every failure is reported as a
// *StreamError whose Kind can be matched with the Err* sentinels via errors.Is.
package streamparse
