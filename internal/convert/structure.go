package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// StructureConverter is a deterministic local stand-in for a layout analyzer.
// Which markdown constructs appear in the output is controlled by the detect
// flags; all of them default to enabled.
type StructureConverter struct {
	detectTables   bool
	detectHeadings bool
	detectLists    bool
}

func NewStructureConverter(opts Options) (*StructureConverter, error) {
	return &StructureConverter{
		detectTables:   boolOr(opts.DetectTables, true),
		detectHeadings: boolOr(opts.DetectHeadings, true),
		detectLists:    boolOr(opts.DetectLists, true),
	}, nil
}

func (c *StructureConverter) Convert(_ context.Context, imagePath string, _ *ConvertOptions) (string, error) {
	if err := checkImage(imagePath); err != nil {
		return "", err
	}

	name := filepath.Base(imagePath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	var b strings.Builder
	fmt.Fprintf(&b, "# Document from %s\n", stem)
	fmt.Fprintf(&b, "*Source: %s*\n", name)

	paragraphs := []string{
		"This is the first paragraph of text extracted from the image.",
		"This is another paragraph with more detailed information.",
	}

	if c.detectHeadings {
		headings := []struct {
			level int
			text  string
		}{
			{1, "Main Heading"},
			{2, "Section 1"},
			{2, "Section 2"},
		}
		for _, h := range headings {
			fmt.Fprintf(&b, "%s %s\n", strings.Repeat("#", h.level), h.text)
			if len(paragraphs) > 0 {
				fmt.Fprintf(&b, "%s\n", paragraphs[0])
				paragraphs = paragraphs[1:]
			}
		}
	}

	for _, p := range paragraphs {
		fmt.Fprintf(&b, "%s\n\n", p)
	}

	if c.detectLists {
		b.WriteString("\n")
		for _, item := range []string{"Item 1", "Item 2", "Item 3"} {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
		for i, item := range []string{"First step", "Second step", "Third step"} {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
		b.WriteString("\n")
	}

	if c.detectTables {
		headers := []string{"Column 1", "Column 2", "Column 3"}
		rows := [][]string{
			{"Data 1A", "Data 1B", "Data 1C"},
			{"Data 2A", "Data 2B", "Data 2C"},
		}
		fmt.Fprintf(&b, "| %s |\n", strings.Join(headers, " | "))
		fmt.Fprintf(&b, "| %s |\n", strings.Join([]string{"---", "---", "---"}, " | "))
		for _, row := range rows {
			fmt.Fprintf(&b, "| %s |\n", strings.Join(row, " | "))
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}
