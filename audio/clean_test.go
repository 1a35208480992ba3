package audio

import "testing"

func TestCleanForSpeech(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "Hello there.",
			want: "Hello there.",
		},
		{
			name: "bold and emphasis stripped",
			in:   "This is **very** important, _really_.",
			want: "This is very important, really.",
		},
		{
			name: "heading flattened",
			in:   "# Setup\nInstall the package first.",
			want: "Setup Install the package first.",
		},
		{
			name: "inline code dropped",
			in:   "Run `make install` to begin.",
			want: "Run to begin.",
		},
		{
			name: "code block dropped",
			in:   "Try this:\n```\nrm -rf ./build\n```\nThen retry.",
			want: "Try this: Then retry.",
		},
		{
			name: "link text kept",
			in:   "See [the docs](https://example.com) for more.",
			want: "See the docs for more.",
		},
		{
			name: "list items joined",
			in:   "- first\n- second\n- third",
			want: "first second third",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanForSpeech(tc.in); got != tc.want {
				t.Errorf("CleanForSpeech(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
