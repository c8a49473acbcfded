// Package script parses producer input files: one task per line, in the
// format "<index> <x> <y> <delay>" with arbitrary whitespace between fields.
// Malformed or out-of-range lines are skipped with a warning rather than
// aborting the whole file.
package script

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/moneytech/pointmon/internal/logging"
	"github.com/moneytech/pointmon/internal/pointpayload"
)

// ParseFile reads path line by line and returns every well-formed,
// in-range task it contains, in file order. Lines that fail to parse or
// name an out-of-range index are skipped and reported in the returned error
// slice; ParseFile itself only fails if the file cannot be opened.
func ParseFile(path string) ([]pointpayload.PointTask, []error) {
	f, err := os.Open(path)
	if err != nil {
		logging.Log(logging.Fatal, " [MAIN] Error: Could not open file: %v", err)
		return nil, []error{err}
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads tasks from r, applying the same line format and tolerance
// rules as ParseFile.
func Parse(r io.Reader) ([]pointpayload.PointTask, []error) {
	var tasks []pointpayload.PointTask
	var errs []error

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		task, err := parseLine(line)
		if err != nil {
			logging.Log(logging.Warning, " [MAIN] Unable to parse line %d. Skipping entry. (line:'%s')", lineNo, line)
			errs = append(errs, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}

		if task.Index < 0 || task.Index >= pointpayload.MaxPoints {
			logging.Log(logging.Warning, " [MAIN] Error: invalid point index given (%d). Skipping entry.", task.Index)
			errs = append(errs, fmt.Errorf("line %d: index %d out of range", lineNo, task.Index))
			continue
		}

		tasks = append(tasks, task)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}

	return tasks, errs
}

func parseLine(line string) (pointpayload.PointTask, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return pointpayload.PointTask{}, fmt.Errorf("expected 4 fields, found %d", len(fields))
	}

	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return pointpayload.PointTask{}, fmt.Errorf("invalid index: %w", err)
	}
	x, err := strconv.ParseFloat(fields[1], 32)
	if err != nil {
		return pointpayload.PointTask{}, fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.ParseFloat(fields[2], 32)
	if err != nil {
		return pointpayload.PointTask{}, fmt.Errorf("invalid y: %w", err)
	}
	delay, err := strconv.Atoi(fields[3])
	if err != nil {
		return pointpayload.PointTask{}, fmt.Errorf("invalid delay: %w", err)
	}

	return pointpayload.PointTask{
		Index: index,
		Delay: delay,
		Point: pointpayload.Point{
			Valid: 1,
			X:     float32(x),
			Y:     float32(y),
		},
	}, nil
}
