package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRFloat(0.5)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"a":  IRInt(1),
		"A":  IRInt(2),
		"aa": IRInt(3),
		"aA": IRInt(4),
		"Aa": IRInt(5),
		"AA": IRInt(6),
	}

	// 'A' = 65, 'a' = 97
	expected := []string{"A", "AA", "Aa", "a", "aA", "aa"}
	assert.Equal(t, expected, obj.SortedKeys())
}

func TestIRObjectEmpty(t *testing.T) {
	assert.Empty(t, IRObject{}.SortedKeys())
}

func TestIRObjectAccessors(t *testing.T) {
	obj := IRObject{
		"name":   IRString("cfr"),
		"count":  IRInt(3),
		"ratio":  IRFloat(0.5),
		"ok":     IRBool(true),
		"nested": IRObject{"x": IRInt(1)},
		"none":   IRNull{},
	}

	s, ok := obj.String("name")
	assert.True(t, ok)
	assert.Equal(t, "cfr", s)

	_, ok = obj.String("count")
	assert.False(t, ok, "int is not a string")

	n, ok := obj.Int("count")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	_, ok = obj.Int("ratio")
	assert.False(t, ok, "float is not an int")

	b, ok := obj.Bool("ok")
	assert.True(t, ok)
	assert.True(t, b)

	nested, ok := obj.Object("nested")
	assert.True(t, ok)
	assert.Equal(t, IRObject{"x": IRInt(1)}, nested)

	v, ok := obj.Get("none")
	assert.True(t, ok)
	assert.Equal(t, IRNull{}, v)

	_, ok = obj.Get("missing")
	assert.False(t, ok)
}

func TestIRObjectCloneIsDeep(t *testing.T) {
	orig := IRObject{
		"list":   IRArray{IRInt(1)},
		"nested": IRObject{"x": IRInt(1)},
	}
	clone := orig.Clone()

	clone["nested"].(IRObject)["x"] = IRInt(2)
	clone["list"].(IRArray)[0] = IRInt(2)
	clone["added"] = IRBool(true)

	assert.Equal(t, IRInt(1), orig["nested"].(IRObject)["x"])
	assert.Equal(t, IRInt(1), orig["list"].(IRArray)[0])
	assert.NotContains(t, orig, "added")
}

func TestUnmarshalIRValue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected IRValue
	}{
		{"string", `"hello"`, IRString("hello")},
		{"int", `42`, IRInt(42)},
		{"negative int", `-7`, IRInt(-7)},
		{"large int stays exact", `1600000000000123`, IRInt(1600000000000123)},
		{"float", `3.5`, IRFloat(3.5)},
		{"exponent", `1e3`, IRFloat(1000)},
		{"int overflow becomes float", `18446744073709551616`, IRFloat(18446744073709551616)},
		{"true", `true`, IRBool(true)},
		{"false", `false`, IRBool(false)},
		{"null", `null`, IRNull{}},
		{"array", `[1,"a",null]`, IRArray{IRInt(1), IRString("a"), IRNull{}}},
		{"object", `{"a":{"b":[true]}}`, IRObject{"a": IRObject{"b": IRArray{IRBool(true)}}}},
		{"surrounding whitespace", " 5 ", IRInt(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := UnmarshalIRValue([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestUnmarshalIRValueRejectsInvalid(t *testing.T) {
	for _, input := range []string{``, `nul`, `nope`, `{`, `[1,`, `-`, `tru`} {
		t.Run(input, func(t *testing.T) {
			_, err := UnmarshalIRValue([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestIRObjectUnmarshalRejectsNonObject(t *testing.T) {
	for _, input := range []string{`null`, `[]`, `"x"`, `1`} {
		t.Run(input, func(t *testing.T) {
			var obj IRObject
			assert.Error(t, json.Unmarshal([]byte(input), &obj))
		})
	}
}

func TestMarshalIRValue(t *testing.T) {
	tests := []struct {
		name     string
		input    IRValue
		expected string
	}{
		{"null", IRNull{}, "null"},
		{"nil", nil, "null"},
		{"string", IRString("a<b"), `"a\u003cb"`},
		{"int", IRInt(-1), "-1"},
		{"float", IRFloat(0.1), "0.1"},
		{"bool", IRBool(false), "false"},
		{"object sorted", IRObject{"b": IRInt(1), "a": IRInt(2)}, `{"a":2,"b":1}`},
		{"array", IRArray{IRNull{}, IRInt(1)}, `[null,1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalIRValue(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(data))
		})
	}
}

func TestMarshalIRValueRejectsNaN(t *testing.T) {
	_, err := MarshalIRValue(IRArray{IRFloat(math.NaN())})
	require.Error(t, err)
}

func TestToIRValue(t *testing.T) {
	v, err := ToIRValue(map[string]any{
		"s": "x",
		"i": 1,
		"u": uint64(2),
		"f": 1.5,
		"n": json.Number("7"),
		"b": true,
		"z": nil,
		"l": []any{int64(1)},
	})
	require.NoError(t, err)

	assert.Equal(t, IRObject{
		"s": IRString("x"),
		"i": IRInt(1),
		"u": IRInt(2),
		"f": IRFloat(1.5),
		"n": IRInt(7),
		"b": IRBool(true),
		"z": IRNull{},
		"l": IRArray{IRInt(1)},
	}, v)
}

func TestToIRValueUnsupported(t *testing.T) {
	_, err := ToIRValue(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestMustObjectPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustObject(map[string]any{"bad": struct{}{}})
	})
}
