package template

import (
	"strconv"
	"strings"

	"github.com/Gabriell-Belmont/sam--product-management/internal/patterns"
)

// FormatTestScenarios groups free-form scenario lines into numbered
// "Cenário" blocks separated by a blank line.
//
// A "Cenário N:" line opens a titled block. "Dado que" opens a new numbered
// block unless the current block holds only its title. Any other line,
// "Quando" and "Então" included, continues the current block.
func FormatTestScenarios(text string) string {
	var (
		blocks  []string
		cur     strings.Builder
		count   = 1
		bare    bool // cur holds only a title line
		started bool
	)
	flush := func() {
		if started {
			blocks = append(blocks, strings.TrimRight(cur.String(), "\n"))
		}
		cur.Reset()
		started = false
		bare = false
	}
	open := func() {
		cur.WriteString("Cenário: " + strconv.Itoa(count) + "\n")
		count++
		started = true
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case patterns.ScenarioTitle(line):
			flush()
			cur.WriteString(line + "\n")
			started = true
			bare = true
			continue
		case patterns.ScenarioGiven(line):
			if !bare {
				flush()
				open()
			}
		default:
			if !started {
				open()
			}
		}
		cur.WriteString(line + "\n")
		bare = false
	}
	flush()
	return strings.TrimSpace(strings.Join(blocks, "\n\n"))
}
