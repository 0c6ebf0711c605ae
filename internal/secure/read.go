package secure

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
)

// ReadFromPath reads a secret from a file, or from stdin if path is "-",
// into a buffer from the default allocator.
func ReadFromPath(path string) (*Buffer, error) {
	return Default().ReadFromPath(path)
}

// ReadFromPath reads a secret from a file, or the first line of stdin if
// path is "-". Surrounding whitespace is trimmed, the heap copy is wiped,
// and an empty secret is an error.
func (a *Allocator) ReadFromPath(path string) (*Buffer, error) {
	var data []byte

	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			return nil, fmt.Errorf("stdin is empty")
		}
		data = scanner.Bytes()
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}
	defer wipe(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret is empty")
	}

	return a.New(trimmed)
}
