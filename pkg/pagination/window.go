package pagination

// Link is one entry of the page selector under the history table.
type Link struct {
	Page     int  `json:"page,omitempty"`
	Active   bool `json:"active,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

// TotalPages returns how many pages of pageSize are needed for total rows.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Window lists the links to show: the first page, the neighbours of the current
// page, the last page, and an ellipsis wherever pages are skipped.
func Window(current, totalPages int) []Link {
	links := []Link{{Page: 1, Active: current == 1}}
	if current > 3 {
		links = append(links, Link{Ellipsis: true})
	}
	for i := max(2, current-1); i <= min(totalPages-1, current+1); i++ {
		links = append(links, Link{Page: i, Active: current == i})
	}
	if current < totalPages-2 {
		links = append(links, Link{Ellipsis: true})
	}
	if totalPages > 1 {
		links = append(links, Link{Page: totalPages, Active: current == totalPages})
	}
	return links
}
