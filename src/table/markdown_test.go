package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want [][]string
	}{
		{
			name: "header separator and row",
			in:   "| a | b |\n|---|---|\n| 1 | 2 |",
			want: [][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			name: "no pipes",
			in:   "just some text\nwithout a table",
			want: nil,
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
		{
			name: "aligned separator",
			in:   "| Name | Age |\n| :--- | ---: |\n| Ann | 31 |",
			want: [][]string{{"Name", "Age"}, {"Ann", "31"}},
		},
		{
			name: "ragged rows kept as is",
			in:   "| a | b | c |\n|---|---|---|\n| 1 |\n| 1 | 2 | 3 | 4 |",
			want: [][]string{{"a", "b", "c"}, {"1"}, {"1", "2", "3", "4"}},
		},
		{
			name: "separator with wrong width is data",
			in:   "| a | b |\n|---|\n| 1 | 2 |",
			want: [][]string{{"a", "b"}, {"---"}, {"1", "2"}},
		},
		{
			name: "separator with empty cell is data",
			in:   "| a | b |\n|---| |\n",
			want: [][]string{{"a", "b"}, {"---", ""}},
		},
		{
			name: "stops at first non table line",
			in:   "intro\n| a |\n| 1 |\nbreak\n| b |\n| 2 |",
			want: [][]string{{"a"}, {"1"}},
		},
		{
			name: "indented lines",
			in:   "   | x | y |   \n\t| 1 | 2 |",
			want: [][]string{{"x", "y"}, {"1", "2"}},
		},
		{
			name: "all empty cells",
			in:   "|  |  |\n|  |  |",
			want: nil,
		},
		{
			name: "lone pipe",
			in:   "|",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMarkdown(tt.in))
		})
	}
}
