package core

import (
	"bufio"
	"os"
	"strings"
)

// adjustLines moves each requested line forward past blank lines and
// line comments so breakpoints land on code. Lines that would run past the
// end of the file, and every line of an unreadable file, are kept as given.
func adjustLines(path string, lines []int) []int {
	out := append([]int(nil), lines...)
	text, err := readLines(path)
	if err != nil {
		return out
	}
	for i, line := range out {
		for n := line; n >= 1 && n <= len(text); n++ {
			if !skippable(text[n-1]) {
				out[i] = n
				break
			}
		}
	}
	return out
}

func skippable(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "//")
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	return out, scanner.Err()
}
