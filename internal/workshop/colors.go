package workshop

// Palette holds the colour tags handed out to models, in allocation order.
var Palette = []string{"blue", "emerald", "amber", "rose", "violet", "cyan", "orange", "lime"}

// AssignColor returns the colour already assigned to modelID, or allocates
// the first unused palette slot. Once the palette is exhausted colours wrap.
func AssignColor(assigned map[string]string, modelID string) string {
	if c, ok := assigned[modelID]; ok {
		return c
	}

	used := make(map[string]bool, len(assigned))
	for _, c := range assigned {
		used[c] = true
	}

	color := Palette[len(assigned)%len(Palette)]
	for _, c := range Palette {
		if !used[c] {
			color = c
			break
		}
	}
	assigned[modelID] = color
	return color
}
