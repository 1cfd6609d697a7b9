package content

import (
	"bytes"
	"html"
	"html/template"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Highlighter provides syntax highlighting for fenced code blocks.
type Highlighter struct {
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

// NewHighlighter creates a new Highlighter instance.
func NewHighlighter() *Highlighter {
	// use CSS classes so both themes can style tokens
	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.PreventSurroundingPre(false),
		chromahtml.WithLineNumbers(false),
	)
	style := styles.Get("github")
	if style == nil {
		style = styles.Fallback
	}
	return &Highlighter{formatter: formatter, style: style}
}

// Code applies syntax highlighting to code in the given language.
// returns plain escaped text if the language is empty, unknown or highlighting fails.
func (h *Highlighter) Code(code, lang string) template.HTML {
	lang = strings.TrimSpace(lang)
	if lang == "" || lang == "text" || lang == "plain" {
		return plainCode(code)
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		return plainCode(code)
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return plainCode(code)
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return plainCode(code)
	}
	return template.HTML(buf.String()) //nolint:gosec // chroma output is safe
}

// CSS writes the stylesheet for the highlighted token classes.
func (h *Highlighter) CSS() (string, error) {
	var buf bytes.Buffer
	if err := h.formatter.WriteCSS(&buf, h.style); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func plainCode(code string) template.HTML {
	return template.HTML(`<pre class="chroma"><code>` + html.EscapeString(code) + "</code></pre>") //nolint:gosec // escaped
}
