package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatten(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain text", "just words", "just words"},
		{"entities", "fish &amp; chips", "fish & chips"},
		{"paragraphs", "<p>one</p><p>two</p>", "one\n\ntwo"},
		{"heading", "<h2>Title</h2><p>body</p>", "## Title\n\nbody"},
		{"inline markup", "<p>a <b>bold</b> and <em>subtle</em> point</p>", "a bold and subtle point"},
		{"list", "<ul><li>first</li><li>second</li></ul>", "- first\n- second"},
		{"anchor with href", `<p>see <a href="https://x.test">the docs</a></p>`, "see the docs (https://x.test)"},
		{"anchor without href", "<p>see <a>the docs</a></p>", "see the docs"},
		{"line break", "<p>one<br>two</p>", "one\ntwo"},
		{"dropped elements", `<p>kept</p><img src="x.png"><script>alert(1)</script>`, "kept"},
		{"nested div", "<div><p>inner</p></div>", "inner"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Flatten(tc.in))
		})
	}
}

func TestFlattenDeterministic(t *testing.T) {
	in := `<h1>Top</h1><p>alpha <a href="https://a.test">beta</a></p><ul><li>x</li></ul>`
	assert.Equal(t, Flatten(in), Flatten(in))
}
