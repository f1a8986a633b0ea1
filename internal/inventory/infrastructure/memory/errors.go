package memory

import "errors"

var errInvalidCommand = errors.New("command was not built by its constructor")
