package password

import "errors"

var ErrHashingFailed = errors.New("failed to hash password")
