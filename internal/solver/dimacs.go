package solver

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/koloss/internal/term"
)

// ParseDIMACS reads a CNF formula in DIMACS format.
//
// Comment lines start with 'c'. The header "p cnf <vars> <clauses>" must
// precede the first clause. Clauses are zero-terminated and may span lines.
// A line starting with '%' ends the input.
func ParseDIMACS(r io.Reader) (Formula, error) {
	var (
		f        Formula
		header   bool
		declared int
		current  Clause
		lineNo   int
		haveOpen bool
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == 'c' {
			continue
		}
		if line[0] == '%' {
			break
		}
		if line[0] == 'p' {
			fields := strings.Fields(line)
			if header || len(fields) != 4 || fields[1] != "cnf" {
				return Formula{}, term.Errorf(term.CodeParse, "line %d: bad problem line %q", lineNo, line)
			}
			nv, err1 := strconv.Atoi(fields[2])
			nc, err2 := strconv.Atoi(fields[3])
			if err1 != nil || err2 != nil || nv < 0 || nc < 0 {
				return Formula{}, term.Errorf(term.CodeParse, "line %d: bad problem line %q", lineNo, line)
			}
			f.NumVars, declared, header = nv, nc, true
			continue
		}
		if !header {
			return Formula{}, term.Errorf(term.CodeParse, "line %d: clause before problem line", lineNo)
		}
		for _, field := range strings.Fields(line) {
			lit, err := strconv.Atoi(field)
			if err != nil {
				return Formula{}, term.Errorf(term.CodeParse, "line %d: bad literal %q", lineNo, field)
			}
			if lit == 0 {
				f.Clauses = append(f.Clauses, current)
				current, haveOpen = nil, false
				continue
			}
			current = append(current, lit)
			haveOpen = true
		}
	}
	if err := sc.Err(); err != nil {
		return Formula{}, term.Errorf(term.CodeParse, "read: %v", err)
	}
	if !header {
		return Formula{}, term.Errorf(term.CodeParse, "missing problem line")
	}
	if haveOpen {
		f.Clauses = append(f.Clauses, current)
	}
	if len(f.Clauses) != declared {
		return Formula{}, term.Errorf(term.CodeParse,
			"problem line declares %d clauses, found %d", declared, len(f.Clauses))
	}
	if err := f.Validate(); err != nil {
		return Formula{}, term.Errorf(term.CodeParse, "%v", err)
	}
	return f, nil
}

// WriteDIMACS writes f in DIMACS format.
func WriteDIMACS(w io.Writer, f Formula) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("p cnf " + strconv.Itoa(f.NumVars) + " " + strconv.Itoa(len(f.Clauses)) + "\n")
	for _, c := range f.Clauses {
		for _, lit := range c {
			bw.WriteString(strconv.Itoa(lit))
			bw.WriteByte(' ')
		}
		bw.WriteString("0\n")
	}
	return bw.Flush()
}
