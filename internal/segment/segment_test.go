package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Coverage(t *testing.T) {
	input := "细说OpenAI的API v2.0：https://openai.com"
	spans := Split(input)
	require.NotEmpty(t, spans)

	t.Run("spans cover the input contiguously", func(t *testing.T) {
		var sb strings.Builder
		cursor := 0
		for _, sp := range spans {
			assert.Equal(t, cursor, sp.Start)
			assert.Equal(t, input[sp.Start:sp.End], sp.Text)
			sb.WriteString(sp.Text)
			cursor = sp.End
		}
		assert.Equal(t, input, sb.String())
		assert.Equal(t, len(input), cursor)
	})

	t.Run("URL is a single protected span", func(t *testing.T) {
		var url *Span
		for i := range spans {
			if spans[i].Kind == KindURL {
				url = &spans[i]
			}
		}
		require.NotNil(t, url)
		assert.Equal(t, "https://openai.com", url.Text)
		assert.Equal(t, SpanProtected, url.Type)
	})

	t.Run("Han runs are han spans", func(t *testing.T) {
		assert.Equal(t, SpanHan, spans[0].Type)
		assert.Equal(t, "细说", spans[0].Text)
	})
}

func TestSplit_Kinds(t *testing.T) {
	spans := Split("abc 12.5% ，Ω")
	kinds := map[Kind]string{}
	for _, sp := range spans {
		kinds[sp.Kind] = sp.Text
	}
	assert.Equal(t, "abc", kinds[KindLatin])
	assert.Equal(t, "12.5%", kinds[KindNumber])
	assert.Equal(t, "，", kinds[KindPunct])
	assert.Equal(t, "Ω", kinds[KindOther])
	assert.Contains(t, kinds, KindSpace)
}

func TestSplit_VersionString(t *testing.T) {
	// The leading letter absorbs the digit, then "." opens a new span.
	spans := Split("v2.0")
	require.Len(t, spans, 3)
	assert.Equal(t, "v2", spans[0].Text)
	assert.Equal(t, ".", spans[1].Text)
	assert.Equal(t, "0", spans[2].Text)
	for _, sp := range spans {
		assert.Equal(t, SpanProtected, sp.Type)
	}
}

func TestSplit_WordLike(t *testing.T) {
	spans := Split("abc 你好")
	assert.True(t, spans[0].WordLike())
	assert.False(t, spans[1].WordLike()) // space
	assert.False(t, spans[2].WordLike()) // han
}

func TestIsHan(t *testing.T) {
	assert.True(t, IsHan('说'))
	assert.True(t, IsHan('㐀'))
	assert.False(t, IsHan('a'))
	assert.False(t, IsHan('。'))
	assert.False(t, IsHan('ぁ'))
}
