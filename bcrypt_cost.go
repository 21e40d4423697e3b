//go:build !race

package activation

func passwordHashCost() int {
	return 12
}
