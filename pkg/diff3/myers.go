package diff3

// OpType classifies a line in an edit script.
type OpType int

const (
	Equal  OpType = iota // Line is unchanged between a and b.
	Insert               // Line is present in b only.
	Delete               // Line is present in a only.
)

// Op is a single operation in a line edit script.
type Op struct {
	Type OpType
	Line string
}

// Diff computes the shortest edit script turning a into b using the Myers
// algorithm over whole lines. It runs in O((N+M)*D) time, D being the size
// of the edit script.
func Diff(a, b []string) []Op {
	n, m := len(a), len(b)
	switch {
	case n == 0 && m == 0:
		return nil
	case n == 0:
		return uniform(Insert, b)
	case m == 0:
		return uniform(Delete, a)
	}

	offset := n + m
	v := make([]int, 2*offset+2)

	// trace[d] is the furthest-reaching x per diagonal before round d ran.
	var trace [][]int
	for d := 0; d <= offset; d++ {
		snap := make([]int, len(v))
		copy(snap, v)
		trace = append(trace, snap)

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				return backtrack(trace, a, b, offset)
			}
		}
	}
	return nil
}

func uniform(t OpType, lines []string) []Op {
	ops := make([]Op, len(lines))
	for i, l := range lines {
		ops[i] = Op{Type: t, Line: l}
	}
	return ops
}

// backtrack walks the recorded rounds from the end point back to the
// origin, emitting operations in reverse.
func backtrack(trace [][]int, a, b []string, offset int) []Op {
	x, y := len(a), len(b)
	var ops []Op

	for d := len(trace) - 1; d > 0; d-- {
		v := trace[d]
		k := x - y

		var prevK int
		if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[offset+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			ops = append(ops, Op{Type: Equal, Line: a[x]})
		}
		if prevK == k-1 {
			x--
			ops = append(ops, Op{Type: Delete, Line: a[x]})
		} else {
			y--
			ops = append(ops, Op{Type: Insert, Line: b[y]})
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		ops = append(ops, Op{Type: Equal, Line: a[x]})
	}

	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}
