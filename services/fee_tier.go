package services

var feeTiers = map[int]int{
	1: 29,
	2: 20,
	3: 15,
	4: 12,
	5: 9,
}

// FeePercent returns the platform fee percentage for a seller level. Unknown
// levels get the level-1 rate so malformed data never under-charges.
func FeePercent(level int) int {
	if pct, ok := feeTiers[level]; ok {
		return pct
	}
	return feeTiers[1]
}
