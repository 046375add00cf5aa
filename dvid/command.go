/*
	This file holds types and functions supporting command-line activity in trainlabels.
	A Command bundles an operation name with positional arguments and optional
	"key=value" settings.
*/

package dvid

import (
	"fmt"
	"strconv"
	"strings"
)

// Keys for setting various arguments within the command line via "key=value" strings.
const (
	KeyConfigFile = "config"
	KeyCount      = "n"
	KeyObjectID   = "object_id"
	KeyOutput     = "out"
)

var setKeys = map[string]bool{
	KeyConfigFile: true,
	KeyCount:      true,
	KeyObjectID:   true,
	KeyOutput:     true,
}

// Command is a command-line request.  The first item in the string slice is the
// command, e.g., "generate" or "serve".  The other arguments are command arguments
// or optional settings of the form "<key>=<value>".
type Command []string

// String returns a space-separated command line
func (cmd Command) String() string {
	return strings.Join([]string(cmd), " ")
}

// Name returns the first argument which is assumed to be the name of the command.
func (cmd Command) Name() string {
	if len(cmd) == 0 {
		return ""
	}
	return cmd[0]
}

// Parameter scans a command for any "key=value" argument and returns
// the value of the passed 'key'.
func (cmd Command) Parameter(key string) (value string, found bool) {
	if len(cmd) > 1 {
		for _, arg := range cmd[1:] {
			elems := strings.SplitN(arg, "=", 2)
			if len(elems) == 2 && elems[0] == key {
				return elems[1], true
			}
		}
	}
	return
}

// IntParameter returns an integer setting or the given default if the key is absent.
func (cmd Command) IntParameter(key string, def int) (int, error) {
	s, found := cmd.Parameter(key)
	if !found {
		return def, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("bad %s=%q: %v", key, s, err)
	}
	return i, nil
}

// Uint64Parameter returns a pointer to an unsigned integer setting or nil if the
// key is absent.
func (cmd Command) Uint64Parameter(key string) (*uint64, error) {
	s, found := cmd.Parameter(key)
	if !found {
		return nil, nil
	}
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad %s=%q: %v", key, s, err)
	}
	return &u, nil
}

// CommandArgs sets a variadic argument set of string pointers to data
// command arguments, ignoring setting arguments of the form "<key>=<value>".
// If there aren't enough arguments to set a target, the target is set to the
// empty string.  It returns an 'overflow' slice that has all arguments
// beyond those needed for targets.
func (cmd Command) CommandArgs(startPos int, targets ...*string) (overflow []string) {
	overflow = make([]string, 0, len(cmd))
	for _, target := range targets {
		*target = ""
	}
	if len(cmd) <= startPos {
		return
	}
	curTarget := 0
	for _, arg := range cmd[startPos:] {
		optionalSet := false
		elems := strings.SplitN(arg, "=", 2)
		if len(elems) == 2 {
			optionalSet = setKeys[elems[0]]
		}
		if optionalSet {
			continue
		}
		if curTarget >= len(targets) {
			overflow = append(overflow, arg)
		} else {
			*(targets[curTarget]) = arg
		}
		curTarget++
	}
	return
}
