package inject

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpacerApply(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		last string
		text string
		want string
	}{
		{name: "first injection", last: "", text: " Hello ", want: "Hello"},
		{name: "after word", last: "Hello", text: "world", want: " world"},
		{name: "after sentence end", last: "Done.", text: "Next", want: " Next"},
		{name: "after whitespace", last: "Hello ", text: "world", want: "world"},
		{name: "leading comma", last: "Hello", text: ", world", want: ", world"},
		{name: "leading question mark", last: "really", text: "?", want: "?"},
		{name: "blank text", last: "Hello", text: "  ", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := &Spacer{}
			s.Record(tc.last)
			require.Equal(t, tc.want, s.Apply(tc.text))
		})
	}
}

func TestSpacerFollowsLastRecordedText(t *testing.T) {
	t.Parallel()

	s := &Spacer{}
	s.Record("Hello ")
	require.Equal(t, "world", s.Apply("world"))

	s.Record("world")
	require.Equal(t, " again", s.Apply("again"))
}
