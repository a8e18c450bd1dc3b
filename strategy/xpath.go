package strategy

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/fxsml/gosplit/splitter"
)

// XPath splits an XML document on the elements matched by expr, using the
// etree path syntax. Each match becomes a standalone document. The XML
// declaration of the input and namespace declarations inherited from
// ancestors are carried over so every part parses on its own.
func XPath(expr string) (splitter.Strategy, error) {
	path, err := etree.CompilePath(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidExpression, expr, err)
	}
	return splitter.StrategyFunc(func(content []byte) ([][]byte, error) {
		if len(content) == 0 {
			return nil, nil
		}
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(content); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		if doc.Root() == nil {
			return nil, fmt.Errorf("%w: no root element", ErrInvalidDocument)
		}

		decl := declaration(doc)
		matches := doc.FindElementsPath(path)
		parts := make([][]byte, 0, len(matches))
		for _, el := range matches {
			part := etree.NewDocument()
			if decl != nil {
				part.CreateProcInst(decl.Target, decl.Inst)
			}
			root := el.Copy()
			inheritNamespaces(root, el)
			part.SetRoot(root)

			b, err := part.WriteToBytes()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
			}
			parts = append(parts, b)
		}
		return parts, nil
	}), nil
}

func declaration(doc *etree.Document) *etree.ProcInst {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			return pi
		}
	}
	return nil
}

// inheritNamespaces copies xmlns declarations in scope at src onto dst,
// nearest ancestor first.
func inheritNamespaces(dst, src *etree.Element) {
	for p := src.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if a.Space != "xmlns" && !(a.Space == "" && a.Key == "xmlns") {
				continue
			}
			if dst.SelectAttr(a.FullKey()) == nil {
				dst.CreateAttr(a.FullKey(), a.Value)
			}
		}
	}
}
