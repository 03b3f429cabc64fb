package html

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.NotNil(t, normaliser.detector)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only",
			input:    "  \n\t ",
			expected: "",
		},
		{
			name:     "plain text collapses whitespace",
			input:    "Hello   world.\n\n\n\nSecond line.",
			expected: "Hello world.\n\nSecond line.",
		},
		{
			name:     "paragraphs joined by blank line",
			input:    "<p>First.</p>\n<p>Second.</p>",
			expected: "First.\n\nSecond.",
		},
		{
			name:     "empty paragraph dropped",
			input:    "<p>First.</p><p>   </p><p>Second.</p>",
			expected: "First.\n\nSecond.",
		},
		{
			name:     "link keeps target",
			input:    `<p>See <a href="https://x.test">click</a> here</p>`,
			expected: "See click (https://x.test) here",
		},
		{
			name:     "anchor without href keeps text",
			input:    `<p><a name="top">top</a></p>`,
			expected: "top",
		},
		{
			name:     "inline code gets backticks",
			input:    "<p>Use <code>string.Join</code> to combine.</p>",
			expected: "Use `string.Join` to combine.",
		},
		{
			name:     "inferred csharp code block",
			input:    "<pre><code>class Foo { public void Bar() {} }</code></pre>",
			expected: "```csharp\nclass Foo { public void Bar() {} }\n```",
		},
		{
			name:     "explicit class language wins",
			input:    `<pre class="lang-py s-code-block"><code>x = 1</code></pre>`,
			expected: "```python\nx = 1\n```",
		},
		{
			name:     "code class beats pre class",
			input:    `<pre class="lang-cs"><code class="hljs language-javascript">let a = 1;</code></pre>`,
			expected: "```javascript\nlet a = 1;\n```",
		},
		{
			name:     "pre without code element",
			input:    "<pre>echo hi</pre>",
			expected: "```bash\necho hi\n```",
		},
		{
			name:     "code entities are decoded",
			input:    "<pre><code>var xs = new List&lt;int&gt;();</code></pre>",
			expected: "```csharp\nvar xs = new List<int>();\n```",
		},
		{
			name:     "unordered list",
			input:    "<ul><li>first</li><li>second <code>x</code></li></ul>",
			expected: "• first\n• second `x`",
		},
		{
			name:     "list item code block follows item",
			input:    "<ol><li>Run this:<pre><code>SELECT * FROM t</code></pre></li><li>Done</li></ol>",
			expected: "• Run this:\n\n```sql\nSELECT * FROM t\n```\n\n• Done",
		},
		{
			name:     "nested list is indented",
			input:    "<ul><li>outer<ul><li>inner</li></ul></li></ul>",
			expected: "• outer\n • inner",
		},
		{
			name:     "blockquote",
			input:    "<blockquote><p>quoted text</p></blockquote>",
			expected: "> quoted text",
		},
		{
			name:     "horizontal rule",
			input:    "<p>a</p><hr><p>b</p>",
			expected: "a\n\n---\n\nb",
		},
		{
			name:     "inline math",
			input:    `<p>Area is <span type="math/tex">\pi r^2</span></p>`,
			expected: `Area is $\pi r^2$`,
		},
		{
			name:     "display math",
			input:    `<script type="math/tex; mode=display">x^2</script>`,
			expected: "$$x^2$$",
		},
		{
			name:     "display attribute selects block math",
			input:    `<p><span type="math/tex" display="block">e=mc^2</span></p>`,
			expected: "$$e=mc^2$$",
		},
		{
			name:     "math class is inline math",
			input:    `<p>Area is <span class="math">x^2</span></p>`,
			expected: "Area is $x^2$",
		},
		{
			name:     "math class with block display",
			input:    `<div class="math" display="block">E=mc^2</div>`,
			expected: "$$E=mc^2$$",
		},
		{
			name:     "block math class is its own paragraph",
			input:    `<p>Energy:</p><div class="math" display="block">E=mc^2</div><p>done</p>`,
			expected: "Energy:\n\n$$E=mc^2$$\n\ndone",
		},
		{
			name:     "math class among other classes",
			input:    `<p>Sum <span class="tex math">a+b</span></p>`,
			expected: "Sum $a+b$",
		},
		{
			name:     "malformed html is tolerated",
			input:    "<p>unclosed <b>bold",
			expected: "unclosed bold",
		},
		{
			name:     "div content is visited",
			input:    "<div><p>inside</p><pre><code>print(1)</code></pre></div>",
			expected: "inside\n\n```python\nprint(1)\n```",
		},
		{
			name:     "table rows",
			input:    "<table><tr><th>a</th><th>b</th></tr><tr><td>1</td><td>2</td></tr></table>",
			expected: "a | b\n1 | 2",
		},
	}

	normaliser := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normaliser.Normalize(tt.input))
		})
	}
}

func TestNormalize_IdempotentOnCleanText(t *testing.T) {
	normaliser := New()
	clean := "Use a StringBuilder.\n\nIt avoids repeated allocations."

	once := normaliser.Normalize(clean)
	twice := normaliser.Normalize(once)

	assert.Equal(t, clean, once)
	assert.Equal(t, once, twice)
}

func TestNormalize_CollapsesLongNewlineRuns(t *testing.T) {
	normaliser := New()
	out := normaliser.Normalize("<p>a</p>\n\n\n\n\n<p>b</p>")

	assert.NotContains(t, out, "\n\n\n")
	assert.False(t, strings.HasPrefix(out, " "))
}

func TestNormalize_ConcurrentUse(t *testing.T) {
	normaliser := New()
	done := make(chan string, 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- normaliser.Normalize("<pre><code>def f(): pass</code></pre>")
		}()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, "```python\ndef f(): pass\n```", <-done)
	}
}

func BenchmarkNormalize(b *testing.B) {
	normaliser := New()
	input := strings.Repeat(
		`<p>Use <a href="https://learn.test">the docs</a>.</p><pre><code>var x = new List&lt;int&gt;();</code></pre>`, 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		normaliser.Normalize(input)
	}
}
