package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mxrobo/robodhs/internal/robot"
)

const (
	// invalidPort is rendered wherever a port reference cannot be
	// resolved against the current holder types.
	invalidPort = "invalid"

	// cassetteRows and puckRows are the rows per column for the two
	// holder layouts.
	cassetteRows = 8
	puckRows     = 16
)

// PortToken renders a port address as the BluIce display token
// "<position-letter> <row> <column>", e.g. "l 1 A". Cassettes address
// ports in 8-row columns, puck adaptors in 16-row pucks. Returns
// "invalid" when the address is missing, out of range, or the holder
// at the position cannot address ports.
func PortToken(s *robot.State, addr *robot.PortAddress) string {
	if addr == nil || addr.Index < 0 || addr.Index >= robot.SamplesPerPosition {
		return invalidPort
	}
	holder := s.HolderTypes[addr.Position]
	switch {
	case holder.IsCassette():
		column := rune('A' + addr.Index/cassetteRows)
		row := addr.Index%cassetteRows + 1
		return fmt.Sprintf("%s %d %c", addr.Position.Letter(), row, column)
	case holder.IsSuperPuck():
		puck := rune('A' + addr.Index/puckRows)
		row := addr.Index%puckRows + 1
		return fmt.Sprintf("%s %d %c", addr.Position.Letter(), row, puck)
	default:
		return invalidPort
	}
}

// MountedToken renders the port of the sample on the goniometer, or ""
// when nothing is mounted.
func MountedToken(s *robot.State) string {
	mounted := s.SampleLocations[robot.LocationGoniometer]
	if mounted == nil {
		return ""
	}
	return PortToken(s, mounted)
}

// parseMountToken splits a compact port token such as "lA5" into its
// position, column letter and 1-based row.
func parseMountToken(token string) (robot.Position, string, int, error) {
	if len(token) < 3 {
		return "", "", 0, fmt.Errorf("invalid port token: %q", token)
	}
	position, ok := robot.ParsePositionLetter(token[:1])
	if !ok {
		return "", "", 0, fmt.Errorf("invalid position letter in %q", token)
	}
	column := token[1:2]
	if column[0] < 'A' || column[0] > 'Z' {
		return "", "", 0, fmt.Errorf("invalid column letter in %q", token)
	}
	row, err := strconv.Atoi(token[2:])
	if err != nil || row < 1 {
		return "", "", 0, fmt.Errorf("invalid row in %q", token)
	}
	return position, column, row, nil
}

// isHolderResetToken reports whether a port token addresses a holder
// cell ("lX0", "mX0", "rX0") rather than a sample port.
func isHolderResetToken(token string) (robot.Position, bool) {
	if !strings.HasSuffix(token, "X0") || len(token) != 3 {
		return "", false
	}
	return robot.ParsePositionLetter(token[:1])
}

// emptySelection returns a zeroed 96-element selection mask for every
// position.
func emptySelection() map[robot.Position][]int {
	sel := make(map[robot.Position][]int, 3)
	for _, pos := range robot.Positions() {
		sel[pos] = make([]int, robot.SamplesPerPosition)
	}
	return sel
}

// fullSelection returns a selection mask covering every port of every
// position.
func fullSelection() map[robot.Position][]int {
	sel := make(map[robot.Position][]int, 3)
	for _, pos := range robot.Positions() {
		ports := make([]int, robot.SamplesPerPosition)
		for i := range ports {
			ports[i] = 1
		}
		sel[pos] = ports
	}
	return sel
}

// flatSelection decodes BluIce's flattened port indexing into a
// per-position selection mask. Each position occupies 97 cells: one
// holder cell followed by its 96 ports. A range starting on the holder
// cell skips it, and ranges are clamped to the position boundary.
func flatSelection(start, count int) (map[robot.Position][]int, error) {
	block := robot.SamplesPerPosition + 1
	positions := robot.Positions()
	if start < 0 || start >= block*len(positions) {
		return nil, fmt.Errorf("start index %d out of range", start)
	}
	if count < 1 {
		return nil, fmt.Errorf("port count %d out of range", count)
	}

	position := positions[start/block]
	local := start % block
	if local == 0 {
		// The holder cell itself carries no port state.
		local = 1
		count--
	}

	first := local - 1
	end := first + count
	if end > robot.SamplesPerPosition {
		end = robot.SamplesPerPosition
	}

	sel := emptySelection()
	for i := first; i < end; i++ {
		sel[position][i] = 1
	}
	return sel, nil
}

// probeSelection decodes the flattened probe argument list into
// per-position 96-element specs. The list carries 97 values per
// position; the first value of each block belongs to the holder cell
// and is skipped.
func probeSelection(args []string) (map[robot.Position][]int, error) {
	block := robot.SamplesPerPosition + 1
	positions := robot.Positions()
	if len(args) < block*len(positions) {
		return nil, fmt.Errorf("expected %d probe values, got %d", block*len(positions), len(args))
	}

	values := make([]int, block*len(positions))
	for i := range values {
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, fmt.Errorf("invalid probe value %q at index %d", args[i], i)
		}
		values[i] = v
	}

	sel := make(map[robot.Position][]int, len(positions))
	for p, pos := range positions {
		first := p*block + 1
		sel[pos] = values[first : first+robot.SamplesPerPosition]
	}
	return sel, nil
}
