package worker

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadIdentifiersFromFile reads item identifiers from a file (one per line)
func ReadIdentifiersFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadIdentifiers(file)
}

// ReadIdentifiers reads identifiers, skipping blank lines, "#" comments and duplicates.
// Lines in the "- ID" form used by the run report's failure list are accepted as well.
func ReadIdentifiers(r io.Reader) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimSpace(strings.TrimPrefix(line, "- "))

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			ids = append(ids, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return ids, nil
}
