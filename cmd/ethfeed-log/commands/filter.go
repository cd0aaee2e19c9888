package commands

import (
	"fmt"
	"io"

	"github.com/ethfeed/ethfeed-go/pkg/log"
)

// RunFilter copies the events matching the filter into a new capture file
// and returns the number of events written. The output is a valid capture
// file that the other commands can read.
func RunFilter(path, output string, filter log.Filter) (int, error) {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}

		logger.Log(event)
		count++
	}

	return count, nil
}
