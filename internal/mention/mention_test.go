package mention

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int64
	}{
		{name: "single mention", text: "@@@__42^^^Jane@@@^^^", want: []int64{42}},
		{name: "display name is ignored", text: "hi @@@__42^^^Somebody Else Entirely@@@^^^ there", want: []int64{42}},
		{name: "empty display name", text: "@@@__42^^^@@@^^^", want: []int64{42}},
		{name: "order and duplicates kept", text: "@@@__3^^^a@@@^^^ @@@__1^^^b@@@^^^ @@@__3^^^a@@@^^^", want: []int64{3, 1, 3}},
		{name: "no mentions", text: "plain text @42", want: nil},
		{name: "non numeric id", text: "@@@__abc^^^Jane@@@^^^", want: nil},
		{name: "missing carets", text: "@@@__42Jane", want: nil},
		{name: "overflowing id skipped", text: "@@@__99999999999999999999^^^x@@@^^^ @@@__5^^^y@@@^^^", want: []int64{5}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Extract(tc.text))
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	text := "ping " + Token(42, "Jane Doe") + " please"
	require.Equal(t, "ping @@@__42^^^Jane Doe@@@^^^ please", text)
	require.Equal(t, []int64{42}, Extract(text))
}
