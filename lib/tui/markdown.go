// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// minMarkdownWidth keeps deeply nested content from wrapping one word
// per line.
const minMarkdownWidth = 10

// wrapBreakpoints are the extra characters ansi.Wrap may break after.
const wrapBreakpoints = " ,.;-+|"

var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

func markdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParserInstance
}

// RenderMarkdown renders markdown as styled terminal text wrapped to
// width. Soft line breaks become spaces so hard-wrapped answers reflow.
// Fenced code blocks are syntax highlighted when they name a language.
func RenderMarkdown(input string, theme Theme, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	source := []byte(input)
	document := markdownParser().Parser().Parse(text.NewReader(source))

	// The output always goes to a terminal view, so the profile is
	// forced instead of detected from the (possibly redirected)
	// environment.
	lipRenderer := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	lipRenderer.SetColorProfile(termenv.ANSI256)

	renderer := &markdownRenderer{source: source, theme: theme, lip: lipRenderer}
	return strings.Join(renderer.blocks(document, max(width, minMarkdownWidth)), "\n\n")
}

// markdownRenderer renders a goldmark AST recursively: every block
// renders to a string already wrapped to the width it was given, and
// containers indent their children's strings.
type markdownRenderer struct {
	source []byte
	theme  Theme
	lip    *lipgloss.Renderer
}

// inlineStyle is the emphasis in effect for a run of inline text.
type inlineStyle struct {
	bold          bool
	italic        bool
	strikethrough bool
}

func (r *markdownRenderer) style(color lipgloss.Color) lipgloss.Style {
	return r.lip.NewStyle().Foreground(color)
}

func (r *markdownRenderer) blocks(parent ast.Node, width int) []string {
	width = max(width, minMarkdownWidth)
	var rendered []string
	for node := parent.FirstChild(); node != nil; node = node.NextSibling() {
		if block := r.block(node, width); block != "" {
			rendered = append(rendered, block)
		}
	}
	return rendered
}

func (r *markdownRenderer) block(node ast.Node, width int) string {
	switch node := node.(type) {
	case *ast.Paragraph:
		return ansi.Wrap(r.inline(node, inlineStyle{}), width, wrapBreakpoints)

	case *ast.TextBlock:
		return ansi.Wrap(r.inline(node, inlineStyle{}), width, wrapBreakpoints)

	case *ast.Heading:
		content := ansi.Strip(r.inline(node, inlineStyle{}))
		color := r.theme.NormalText
		if node.Level <= 2 {
			color = r.theme.HeaderForeground
		}
		return ansi.Wrap(r.style(color).Bold(true).Render(content), width, wrapBreakpoints)

	case *ast.FencedCodeBlock:
		return r.code(r.lines(node), string(node.Language(r.source)))

	case *ast.CodeBlock:
		return r.code(r.lines(node), "")

	case *ast.Blockquote:
		bar := r.style(r.theme.BorderColor).Render("│ ")
		return prefixLines(strings.Join(r.blocks(node, width-2), "\n\n"), bar, bar)

	case *ast.List:
		return r.list(node, width)

	case *ast.ThematicBreak:
		return r.style(r.theme.BorderColor).Render(strings.Repeat("─", width))

	case *ast.HTMLBlock:
		stripped := strings.TrimSpace(stripHTMLTags(r.lines(node)))
		if stripped == "" {
			return ""
		}
		return r.style(r.theme.FaintText).Render(stripped)

	case *extast.Table:
		return r.table(node, width)

	default:
		return strings.Join(r.blocks(node, width), "\n\n")
	}
}

func (r *markdownRenderer) lines(node ast.Node) string {
	var content strings.Builder
	lines := node.Lines()
	for index := range lines.Len() {
		segment := lines.At(index)
		content.Write(segment.Value(r.source))
	}
	return content.String()
}

// code highlights code with Chroma when a language is named, and
// renders it as faint plain text otherwise. Code is never wrapped.
func (r *markdownRenderer) code(code, language string) string {
	code = strings.TrimRight(code, "\n")
	if language != "" {
		var highlighted strings.Builder
		if err := quick.Highlight(&highlighted, code, language, "terminal256", "monokai"); err == nil {
			return trimTrailingBlankLines(highlighted.String())
		}
	}
	return r.style(r.theme.FaintText).Render(code)
}

func (r *markdownRenderer) list(list *ast.List, width int) string {
	separator := "\n\n"
	if list.IsTight {
		separator = "\n"
	}
	number := list.Start
	var items []string
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		bullet := "- "
		if list.IsOrdered() {
			bullet = fmt.Sprintf("%d. ", number)
			number++
		}
		indent := strings.Repeat(" ", len(bullet))
		body := strings.Join(r.blocks(item, width-len(bullet)), separator)
		items = append(items, prefixLines(body, bullet, indent))
	}
	return strings.Join(items, separator)
}

func (r *markdownRenderer) inline(parent ast.Node, style inlineStyle) string {
	var out strings.Builder
	for node := parent.FirstChild(); node != nil; node = node.NextSibling() {
		switch node := node.(type) {
		case *ast.Text:
			out.WriteString(r.text(string(node.Segment.Value(r.source)), style))
			switch {
			case node.HardLineBreak():
				out.WriteString("\n")
			case node.SoftLineBreak():
				out.WriteString(" ")
			}

		case *ast.String:
			out.WriteString(r.text(string(node.Value), style))

		case *ast.Emphasis:
			nested := style
			if node.Level >= 2 {
				nested.bold = true
			} else {
				nested.italic = true
			}
			out.WriteString(r.inline(node, nested))

		case *extast.Strikethrough:
			nested := style
			nested.strikethrough = true
			out.WriteString(r.inline(node, nested))

		case *ast.CodeSpan:
			out.WriteString(r.style(r.theme.FaintText).Render(r.codeSpanText(node)))

		case *ast.Link:
			out.WriteString(r.inline(node, style))
			if destination := string(node.Destination); destination != "" {
				out.WriteString(" " + r.style(r.theme.LinkForeground).Render("("+destination+")"))
			}

		case *ast.AutoLink:
			out.WriteString(r.style(r.theme.LinkForeground).Render(string(node.URL(r.source))))

		case *ast.Image:
			out.WriteString(r.style(r.theme.FaintText).Render("[" + ansi.Strip(r.inline(node, style)) + "]"))

		case *ast.RawHTML:
			// Inline tags are dropped; their text is in sibling nodes.

		case *extast.TaskCheckBox:
			if node.IsChecked {
				out.WriteString(r.style(r.theme.StatusConnected).Render("[x]") + " ")
			} else {
				out.WriteString(r.text("[ ] ", style))
			}

		default:
			out.WriteString(r.inline(node, style))
		}
	}
	return out.String()
}

func (r *markdownRenderer) text(content string, style inlineStyle) string {
	rendered := r.style(r.theme.NormalText).
		Bold(style.bold).
		Italic(style.italic).
		Strikethrough(style.strikethrough)
	return rendered.Render(content)
}

func (r *markdownRenderer) codeSpanText(node ast.Node) string {
	var code strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch child := child.(type) {
		case *ast.Text:
			code.Write(child.Segment.Value(r.source))
		case *ast.String:
			code.Write(child.Value)
		}
	}
	return code.String()
}

// table renders a GFM table with padded columns, shrinking columns
// proportionally when the table is wider than width.
func (r *markdownRenderer) table(table *extast.Table, width int) string {
	var header []string
	var rows [][]string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.Kind() {
		case extast.KindTableHeader:
			header = r.tableCells(child)
		case extast.KindTableRow:
			rows = append(rows, r.tableCells(child))
		}
	}

	columns := len(header)
	if columns == 0 && len(rows) > 0 {
		columns = len(rows[0])
	}
	if columns == 0 {
		return ""
	}

	const gap = "  "
	widths := make([]int, columns)
	for _, row := range append([][]string{header}, rows...) {
		for index, cell := range row {
			if index < columns {
				widths[index] = max(widths[index], lipgloss.Width(cell))
			}
		}
	}
	total := len(gap) * (columns - 1)
	for _, columnWidth := range widths {
		total += columnWidth
	}
	if total > width {
		usable := max(width-len(gap)*(columns-1), 3*columns)
		content := total - len(gap)*(columns-1)
		for index := range widths {
			widths[index] = max(widths[index]*usable/content, 3)
		}
	}

	var lines []string
	if len(header) > 0 {
		bold := r.style(r.theme.NormalText).Bold(true)
		styled := make([]string, len(header))
		for index, cell := range header {
			styled[index] = bold.Render(ansi.Strip(cell))
		}
		lines = append(lines, formatTableRow(styled, widths, table.Alignments, gap))

		rules := make([]string, columns)
		for index, columnWidth := range widths {
			rules[index] = strings.Repeat("─", columnWidth)
		}
		lines = append(lines, r.style(r.theme.BorderColor).Render(strings.Join(rules, gap)))
	}
	for _, row := range rows {
		lines = append(lines, formatTableRow(row, widths, table.Alignments, gap))
	}
	return strings.Join(lines, "\n")
}

func (r *markdownRenderer) tableCells(row ast.Node) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if cell.Kind() == extast.KindTableCell {
			cells = append(cells, r.inline(cell, inlineStyle{}))
		}
	}
	return cells
}

func formatTableRow(cells []string, widths []int, alignments []extast.Alignment, gap string) string {
	parts := make([]string, len(widths))
	for index, columnWidth := range widths {
		var cell string
		if index < len(cells) {
			cell = cells[index]
		}
		if lipgloss.Width(cell) > columnWidth {
			cell = ansi.Truncate(cell, columnWidth, "…")
		}
		padding := max(columnWidth-lipgloss.Width(cell), 0)

		alignment := extast.AlignNone
		if index < len(alignments) {
			alignment = alignments[index]
		}
		switch alignment {
		case extast.AlignRight:
			cell = strings.Repeat(" ", padding) + cell
		case extast.AlignCenter:
			left := padding / 2
			cell = strings.Repeat(" ", left) + cell + strings.Repeat(" ", padding-left)
		default:
			cell += strings.Repeat(" ", padding)
		}
		parts[index] = cell
	}
	return strings.Join(parts, gap)
}

// trimTrailingBlankLines drops visually empty trailing lines, keeping
// their escape sequences so a closing reset is not lost.
func trimTrailingBlankLines(content string) string {
	lines := strings.Split(content, "\n")
	for len(lines) > 1 && strings.TrimSpace(ansi.Strip(lines[len(lines)-1])) == "" {
		lines[len(lines)-2] += strings.TrimSpace(lines[len(lines)-1])
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// prefixLines puts first before the first line of content and rest
// before every following line.
func prefixLines(content, first, rest string) string {
	lines := strings.Split(content, "\n")
	for index, line := range lines {
		if index == 0 {
			lines[index] = first + line
		} else {
			lines[index] = rest + line
		}
	}
	return strings.Join(lines, "\n")
}

func stripHTMLTags(html string) string {
	var result strings.Builder
	inTag := false
	for _, character := range html {
		switch {
		case character == '<':
			inTag = true
		case character == '>':
			inTag = false
		case !inTag:
			result.WriteRune(character)
		}
	}
	return result.String()
}
