package core

import "errors"

var ErrEntityNotFound = errors.New("entity not found")
var ErrEntityExists = errors.New("entity already exists")
