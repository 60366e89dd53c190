package handlers

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/vancomm/classic-minesweeper/internal/mines"
)

// Maps known commands to number of arguments
var commandNargs = map[string]int{
	"g": 0, // get the current state
	"o": 2, // open the cell at row col
}

type CommandError struct {
	Line int
	Err  error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func byPiece(s string, sep string) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		i := 0
		found := true
		var piece string
		for found {
			piece, s, found = strings.Cut(s, sep)
			if !yield(i, piece) {
				return
			}
			i += 1
		}
	}
}

func parseRowCol(args []string) (row int, col int, err error) {
	if row, err = strconv.Atoi(args[0]); err != nil {
		return 0, 0, errors.New("row must be an int")
	}
	if col, err = strconv.Atoi(args[1]); err != nil {
		return 0, 0, errors.New("col must be an int")
	}
	return row, col, nil
}

type command struct {
	name     string
	row, col int
}

func parseCommand(c string) (command, error) {
	parts := strings.Fields(c)
	if len(parts) == 0 {
		return command{}, errors.New("empty command")
	}
	nargs, ok := commandNargs[parts[0]]
	if !ok {
		return command{}, fmt.Errorf("unknown command %q", parts[0])
	}
	if nargs != len(parts)-1 {
		return command{}, errors.New("invalid number of arguments")
	}
	cmd := command{name: parts[0]}
	if nargs == 2 {
		row, col, err := parseRowCol(parts[1:])
		if err != nil {
			return command{}, err
		}
		cmd.row, cmd.col = row, col
	}
	return cmd, nil
}

// parseCommands parses newline-separated commands of the following syntax:
//
//	g       // get the game state
//	o r c   // open the cell at row r, column c
//
// Blank lines are skipped. Every other line must parse and every position
// must be on the board before any of them is executed. A [CommandError]
// names the offending line counting from 1.
func parseCommands(s *mines.GameState, text string) ([]command, error) {
	var cmds []command
	for i, line := range byPiece(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cmd, err := parseCommand(line)
		if err != nil {
			return nil, &CommandError{Line: i + 1, Err: err}
		}
		if cmd.name == "o" && !s.ValidatePoint(cmd.row, cmd.col) {
			return nil, &CommandError{Line: i + 1, Err: mines.ErrOutOfBounds}
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// executeCommands runs text against s and reports whether s changed.
// Execution stops as soon as the game is over.
func executeCommands(s *mines.GameState, text string) (changed bool, err error) {
	cmds, err := parseCommands(s, text)
	if err != nil {
		return false, err
	}
	for _, cmd := range cmds {
		if s.Outcome().Over() {
			break
		}
		switch cmd.name {
		case "o":
			if _, err := s.Reveal(cmd.row, cmd.col); err != nil {
				return changed, err
			}
			changed = true
		}
	}
	return changed, nil
}
