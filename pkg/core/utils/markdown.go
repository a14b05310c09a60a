package utils

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is a fenced code block found in model output.
type CodeBlock struct {
	Language string
	Body     string
}

// FencedBlocks parses input as Markdown and returns its fenced code blocks in document order.
// An unterminated fence runs to the end of the input, which is what a truncated model reply looks like.
func FencedBlocks(input string) []CodeBlock {
	source := []byte(input)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		blocks = append(blocks, CodeBlock{
			Language: strings.ToLower(string(fcb.Language(source))),
			Body:     buf.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
