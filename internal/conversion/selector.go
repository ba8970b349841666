package conversion

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxRangeUnits caps how many units one "start-end" range may select. The
// range is expanded before the document is opened, so its length is bounded
// up front.
const MaxRangeUnits = 1 << 16

// ParseUnitSelector parses "0,1,2" or "0-5" into zero-based unit indices. An
// empty selector returns nil, meaning every unit. Mixing both forms is rejected.
func ParseUnitSelector(selector string) ([]int, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, nil
	}
	if strings.Contains(selector, "-") {
		if strings.Contains(selector, ",") {
			return nil, InvalidArgument(fmt.Sprintf("unit selector %q mixes list and range forms", selector), nil)
		}
		return parseRange(selector)
	}
	return parseList(selector)
}

func parseRange(selector string) ([]int, error) {
	parts := strings.Split(selector, "-")
	if len(parts) != 2 {
		return nil, InvalidArgument(fmt.Sprintf("unit range %q must look like start-end", selector), nil)
	}
	start, err := parseIndex(parts[0])
	if err != nil {
		return nil, err
	}
	end, err := parseIndex(parts[1])
	if err != nil {
		return nil, err
	}
	if end < start {
		return nil, InvalidArgument(fmt.Sprintf("unit range %q ends before it starts", selector), nil)
	}
	if end-start >= MaxRangeUnits {
		return nil, InvalidArgument(
			fmt.Sprintf("unit range %q selects more than %d units", selector, MaxRangeUnits), nil)
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out, nil
}

func parseList(selector string) ([]int, error) {
	parts := strings.Split(selector, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		idx, err := parseIndex(p)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

func parseIndex(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, InvalidArgument(fmt.Sprintf("unit index %q is not an integer", raw), err)
	}
	if idx < 0 {
		return 0, InvalidArgument(fmt.Sprintf("unit index %d is negative", idx), nil)
	}
	return idx, nil
}

// ResolveUnits validates selected indices against the document's unit count.
// A nil selection expands to every unit.
func ResolveUnits(selected []int, count int) ([]int, error) {
	if selected == nil {
		out := make([]int, count)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	for _, idx := range selected {
		if idx >= count {
			return nil, InvalidArgument(
				fmt.Sprintf("unit index %d out of range, document has %d units", idx, count),
				nil,
			)
		}
	}
	return append([]int(nil), selected...), nil
}
