// ABOUTME: Panel width allocation for the side-thread dock
// ABOUTME: Splits the viewport budget across open panels, favoring newer ones

package panels

// Layout constants. The main pane keeps at least mainMin pixels; the dock
// never takes more than 60% of the viewport.
const (
	panelBase = 360
	panelMin  = 220
	panelMax  = 420
	panelGap  = 8
	mainMin   = 720
)

// availableWidth is the horizontal budget the dock may occupy for a given
// viewport width.
func availableWidth(vw int) int {
	remaining := vw - mainMin
	if remaining < 0 {
		remaining = 0
	}
	limit := vw * 3 / 5
	if remaining < limit {
		return remaining
	}
	return limit
}

// computeWidths allocates a width to each of n open panels (index 0 is the
// oldest, rendered leftmost). Every width lands in [panelMin, panelMax];
// when the budget allows, the total including gaps fits within the
// available width.
func computeWidths(n, vw int) []int {
	if n <= 0 {
		return nil
	}

	available := availableWidth(vw)
	widths := make([]int, n)

	if available <= 0 {
		for i := range widths {
			widths[i] = panelMin
		}
		return widths
	}

	gaps := (n - 1) * panelGap

	if n*panelBase+gaps <= available {
		// Enough room: start at base with a small bias toward newer panels
		for i := range widths {
			bias := 0.0
			if n > 1 {
				bias = float64(i) / float64(n-1)
			}
			w := panelBase + int(bias*24)
			if w > panelMax {
				w = panelMax
			}
			widths[i] = w
		}
		shrinkFromOldest(widths, available)
		return widths
	}

	// Not enough room: even split, clamped at the minimum
	even := (available - gaps) / n
	if even < panelMin {
		even = panelMin
	}
	for i := range widths {
		widths[i] = even
	}

	// Hand out leftover pixels under a sliding cap: the newest panel stays
	// at the even share and each older panel may take one pixel more than
	// the panel to its right
	leftover := available - (n*even + gaps)
	for pass := 0; pass < 16 && leftover > 0; pass++ {
		grew := false
		for i := n - 1; i >= 0 && leftover > 0; i-- {
			limit := even + (n - 1 - i)
			if limit > panelMax {
				limit = panelMax
			}
			if widths[i] < limit {
				widths[i]++
				leftover--
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	shrinkFromOldest(widths, available)
	return widths
}

// shrinkFromOldest trims one pixel at a time, oldest panels first, until the
// total including gaps fits the budget. Widths never go below panelMin, so
// a budget smaller than n*panelMin stays overshot.
func shrinkFromOldest(widths []int, available int) {
	total := (len(widths) - 1) * panelGap
	for _, w := range widths {
		total += w
	}

	for total > available {
		shrunk := false
		for i := 0; i < len(widths) && total > available; i++ {
			if widths[i] > panelMin {
				widths[i]--
				total--
				shrunk = true
			}
		}
		if !shrunk {
			return
		}
	}
}
