package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores so services and
// handlers can translate them.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)
