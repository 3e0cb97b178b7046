package tab

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	stringLineRe = regexp.MustCompile(`^[eBGDAE]\|`)
	tokenRe      = regexp.MustCompile(`--|\d+`)
)

// Parse reads rendered tablature text back into a grid. The six string
// lines are expected in e B G D A E order; rows are padded to a common
// column count.
func Parse(text string) (*Grid, error) {
	var stringLines []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		if stringLineRe.MatchString(ln) {
			stringLines = append(stringLines, ln)
		}
	}

	if len(stringLines) < NumStrings {
		return nil, fmt.Errorf("tab: text contains %d string lines, want %d", len(stringLines), NumStrings)
	}

	g := &Grid{}
	for r := 0; r < NumStrings; r++ {
		ln := stringLines[r]
		body := ln
		if i := strings.Index(ln, "|"); i >= 0 {
			body = ln[i+1:]
			if j := strings.LastIndex(body, "|"); j >= 0 {
				body = body[:j]
			}
		}
		tokens := tokenRe.FindAllString(body, -1)
		g.Rows[r] = tokens
		if len(tokens) > g.Cols {
			g.Cols = len(tokens)
		}
	}

	for r := 0; r < NumStrings; r++ {
		for len(g.Rows[r]) < g.Cols {
			g.Rows[r] = append(g.Rows[r], Rest)
		}
	}

	return g, nil
}
