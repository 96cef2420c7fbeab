package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/jsonc"
)

// decodeJSON parses JSON, or JSON with comments and trailing commas, into
// an ordered value tree.
func decodeJSON(data []byte) (value, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()

	v, err := readJSONValue(dec)
	if err != nil {
		return value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return value{}, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

func readJSONValue(dec *json.Decoder) (value, error) {
	tok, err := dec.Token()
	if err != nil {
		return value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			v := value{kind: kindObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return value{}, fmt.Errorf("object key must be a string, got %v", keyTok)
				}
				val, err := readJSONValue(dec)
				if err != nil {
					return value{}, err
				}
				v.set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return value{}, err
			}
			return v, nil

		case '[':
			v := value{kind: kindArray}
			for dec.More() {
				item, err := readJSONValue(dec)
				if err != nil {
					return value{}, err
				}
				v.items = append(v.items, item)
			}
			if _, err := dec.Token(); err != nil {
				return value{}, err
			}
			return v, nil
		}

	case string:
		return value{kind: kindString, str: t}, nil
	case json.Number:
		return value{kind: kindNumber, str: t.String()}, nil
	case bool:
		return value{kind: kindBool, boolean: t}, nil
	case nil:
		return value{kind: kindNull}, nil
	}

	return value{}, fmt.Errorf("unexpected token %v", tok)
}
