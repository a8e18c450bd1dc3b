package strategy

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/fxsml/gosplit/splitter"
)

// JSONPath splits a JSON document on the array selected by path, using
// gjson path syntax. Each element becomes one part holding its raw JSON.
// An empty path splits a top-level array. A path that selects nothing
// yields no parts.
func JSONPath(path string) splitter.Strategy {
	return splitter.StrategyFunc(func(content []byte) ([][]byte, error) {
		if len(content) == 0 {
			return nil, nil
		}
		if !gjson.ValidBytes(content) {
			return nil, fmt.Errorf("%w: malformed json", ErrInvalidDocument)
		}

		var res gjson.Result
		if path == "" {
			res = gjson.ParseBytes(content)
		} else {
			res = gjson.GetBytes(content, path)
		}
		if !res.Exists() {
			return nil, nil
		}
		if !res.IsArray() {
			return nil, fmt.Errorf("%w: %q is %s", ErrNotArray, path, res.Type)
		}

		var parts [][]byte
		res.ForEach(func(_, v gjson.Result) bool {
			parts = append(parts, []byte(v.Raw))
			return true
		})
		return parts, nil
	})
}
