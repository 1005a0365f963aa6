package toolchain

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"serving-optimizer/internal/core/domain"
)

var (
	namePattern  = regexp.MustCompile(`\(name=([^,)]+)`)
	constPattern = regexp.MustCompile(`Found (\d+) \([^)]*\) const parameters`)
)

// ParseGraphSummary reads the text printed by summarize_graph.
func ParseGraphSummary(text string) (*domain.GraphSummary, error) {
	summary := &domain.GraphSummary{
		OpCounts: make(map[string]int),
		Inputs:   []string{},
		Outputs:  []string{},
	}
	sawOps := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.Contains(line, "possible inputs:"):
			summary.Inputs = append(summary.Inputs, names(line)...)
		case strings.Contains(line, "possible outputs:"):
			summary.Outputs = append(summary.Outputs, names(line)...)
		case strings.HasPrefix(line, "Op types used:"):
			sawOps = true
			if err := parseOps(strings.TrimPrefix(line, "Op types used:"), summary); err != nil {
				return nil, err
			}
		default:
			if m := constPattern.FindStringSubmatch(line); m != nil {
				n, err := strconv.ParseInt(m[1], 10, 64)
				if err != nil {
					return nil, fmt.Errorf("parse const parameters: %w", err)
				}
				summary.ConstParameters = n
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read graph summary: %w", err)
	}
	if !sawOps {
		return nil, fmt.Errorf("graph summary has no op types line")
	}
	return summary, nil
}

func names(line string) []string {
	var out []string
	for _, m := range namePattern.FindAllStringSubmatch(line, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

func parseOps(s string, summary *domain.GraphSummary) error {
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		count, op, ok := strings.Cut(entry, " ")
		if !ok {
			return fmt.Errorf("invalid op count %q", entry)
		}
		n, err := strconv.Atoi(count)
		if err != nil {
			return fmt.Errorf("invalid op count %q: %w", entry, err)
		}
		summary.OpCounts[strings.TrimSpace(op)] += n
		summary.NodeCount += n
	}
	return nil
}
