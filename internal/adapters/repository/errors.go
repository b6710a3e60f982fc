package repository

import "errors"

// Sentinel kinds for journal errors.
var (
	ErrEmpty       = errors.New("journal is empty")
	ErrHeightGap   = errors.New("journal height gap")
	ErrBrokenChain = errors.New("journal hash chain broken")
	ErrBadRecord   = errors.New("malformed journal record")
	ErrClosed      = errors.New("journal closed")
)
