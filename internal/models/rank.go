package models

import "slices"

// RankRows orders rows by score descending, then by chunk id so equal
// scores come back in a stable order
func RankRows(rows []SearchRow) {
	slices.SortStableFunc(rows, compareRows)
}

func compareRows(a, b SearchRow) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	case a.ChunkID < b.ChunkID:
		return -1
	case a.ChunkID > b.ChunkID:
		return 1
	}
	return 0
}
