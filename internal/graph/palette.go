package graph

// palette holds the 20 hues cycled through when assigning tag colors.
// Assignment is by first occurrence of a tag name over the full, unfiltered
// tag set (soft-deleted tags included), so a tag keeps its color across
// tenant filtering and restores.
var palette = [...]string{
	"#1f77b4", "#aec7e8", "#ff7f0e", "#ffbb78", "#2ca02c",
	"#98df8a", "#d62728", "#ff9896", "#9467bd", "#c5b0d5",
	"#8c564b", "#c49c94", "#e377c2", "#f7b6d2", "#7f7f7f",
	"#c7c7c7", "#bcbd22", "#dbdb8d", "#17becf", "#9edae5",
}

func colorAt(index int) string {
	return palette[index%len(palette)]
}
