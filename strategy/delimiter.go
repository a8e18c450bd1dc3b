package strategy

import (
	"bytes"

	"github.com/fxsml/gosplit/splitter"
)

// Delimiter splits content on every occurrence of sep. Empty pieces are
// dropped unless keepEmpty is set.
func Delimiter(sep string, keepEmpty bool) splitter.Strategy {
	s := []byte(sep)
	return splitter.StrategyFunc(func(content []byte) ([][]byte, error) {
		if len(content) == 0 {
			return nil, nil
		}
		var parts [][]byte
		for _, piece := range bytes.Split(content, s) {
			if len(piece) == 0 && !keepEmpty {
				continue
			}
			parts = append(parts, bytes.Clone(piece))
		}
		return parts, nil
	})
}

// Lines splits content into non-empty lines. A trailing carriage return is
// stripped from every line.
func Lines() splitter.Strategy {
	return splitter.StrategyFunc(func(content []byte) ([][]byte, error) {
		var parts [][]byte
		for _, line := range bytes.Split(content, []byte("\n")) {
			line = bytes.TrimSuffix(line, []byte("\r"))
			if len(line) == 0 {
				continue
			}
			parts = append(parts, bytes.Clone(line))
		}
		return parts, nil
	})
}
