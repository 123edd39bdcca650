// Command coin brute-forces the five-coin weighing puzzle bundled with the
// original Synacor challenge sources: five coins of known weight go into
// five blanks of a polynomial, and every ordering that balances the
// equation is a valid answer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// coin names and weights, in the order the original puzzle lists them.
var (
	names   = []string{"red coin", "corroded coin", "shiny coin", "concave coin", "blue coin"}
	weights = []int{2, 3, 5, 7, 9}
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var target int

	cmd := &cobra.Command{
		Use:   "coin",
		Short: "Brute-force the five-coin weighing puzzle",
		RunE: func(cmd *cobra.Command, args []string) error {
			solutions := Solve(target)
			if len(solutions) == 0 {
				fmt.Printf("no ordering of the coins sums to %d\n", target)
				return nil
			}
			for _, s := range solutions {
				fmt.Println(describe(s))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&target, "target", 399, "target value of _ + _*_^2 + _^3 - _")

	return cmd
}

// Solve returns every permutation of coin indices (0..4, matching names and
// weights) for which weights[p0] + weights[p1]*weights[p2]^2 +
// weights[p3]^3 - weights[p4] == target.
func Solve(target int) [][5]int {
	var solutions [][5]int
	var perm [5]int
	var used [5]bool

	var generate func(depth int)
	generate = func(depth int) {
		if depth == 5 {
			if satisfies(perm, target) {
				solutions = append(solutions, perm)
			}
			return
		}
		for i := 0; i < 5; i++ {
			if used[i] {
				continue
			}
			used[i] = true
			perm[depth] = i
			generate(depth + 1)
			used[i] = false
		}
	}
	generate(0)

	return solutions
}

func satisfies(p [5]int, target int) bool {
	a, b, c, d, e := weights[p[0]], weights[p[1]], weights[p[2]], weights[p[3]], weights[p[4]]
	return a+b*c*c+d*d*d-e == target
}

func describe(p [5]int) string {
	out := ""
	for i, idx := range p {
		if i > 0 {
			out += " "
		}
		out += names[idx]
	}
	return out
}
