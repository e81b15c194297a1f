package eligibility

import "errors"

// ErrNoSource — Engine создан без одного из источников данных.
var ErrNoSource = errors.New("eligibility source not configured")
