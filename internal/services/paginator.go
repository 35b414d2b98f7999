package services

import (
	"strconv"
	"strings"
)

// DefaultPageSize is the number of posts on one feed page.
const DefaultPageSize = 10

// ParsePage reads a ?page= value. Anything that is not an integer means the first page.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return n
}

// totalPages is never below 1, even for an empty set.
func totalPages(count int64, size int) int {
	if count <= 0 {
		return 1
	}
	return int((count + int64(size) - 1) / int64(size))
}

// clampPage resolves a requested page number against the page count. Numbers
// outside 1..pages resolve to the last page, the way the paginator of the
// original site behaves, so a stale link never errors.
func clampPage(page, pages int) int {
	if page < 1 || page > pages {
		return pages
	}
	return page
}
