package jsonutil_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/jsonutil"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestExtractObject(t *testing.T) {
	t.Run("should parse clean JSON directly", func(t *testing.T) {
		var got payload
		err := jsonutil.ExtractObject(`{"name":"a","count":2}`, &got)

		require.NoError(t, err)
		require.Equal(t, payload{Name: "a", Count: 2}, got)
	})

	t.Run("should strip markdown fences with a language tag", func(t *testing.T) {
		raw := "```json\n{\"name\":\"a\",\"count\":2}\n```"

		var got payload
		require.NoError(t, jsonutil.ExtractObject(raw, &got))
		require.Equal(t, "a", got.Name)
	})

	t.Run("should strip bare markdown fences", func(t *testing.T) {
		raw := "```\n{\"name\":\"a\",\"count\":2}\n```"

		var got payload
		require.NoError(t, jsonutil.ExtractObject(raw, &got))
		require.Equal(t, 2, got.Count)
	})

	t.Run("should find the object inside surrounding prose", func(t *testing.T) {
		raw := "Sure, here is the breakdown you asked for:\n" +
			`{"name":"a","count":2}` + "\nLet me know if you need more."

		var got payload
		require.NoError(t, jsonutil.ExtractObject(raw, &got))
		require.Equal(t, "a", got.Name)
	})

	t.Run("should handle braces and escapes inside string values", func(t *testing.T) {
		raw := `prefix {"name":"braces } inside \" here","count":2} suffix`

		var got payload
		require.NoError(t, jsonutil.ExtractObject(raw, &got))
		require.Equal(t, `braces } inside " here`, got.Name)
	})

	t.Run("should take the first object when several are present", func(t *testing.T) {
		raw := `{"name":"first","count":1} {"name":"second","count":2}`

		var got payload
		require.NoError(t, jsonutil.ExtractObject(raw, &got))
		require.Equal(t, "first", got.Name)
	})

	t.Run("should report missing objects", func(t *testing.T) {
		var got payload

		require.ErrorIs(t, jsonutil.ExtractObject("no json here", &got), jsonutil.ErrNoJSONObject)
		require.ErrorIs(t, jsonutil.ExtractObject("", &got), jsonutil.ErrNoJSONObject)
		require.ErrorIs(t, jsonutil.ExtractObject("   \n  ", &got), jsonutil.ErrNoJSONObject)
	})

	t.Run("should report unbalanced objects", func(t *testing.T) {
		var got payload

		require.ErrorIs(t, jsonutil.ExtractObject(`{"name":"a","count":`, &got), jsonutil.ErrNoJSONObject)
	})
}
