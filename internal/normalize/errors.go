package normalize

import "github.com/pkg/errors"

var (
	errEmptyBlocks = errors.New("content block array is empty")
	errMissingText = errors.New("first content block has no text field")
)
