package service

import "errors"

var ErrUnknownSection = errors.New("unknown dashboard section")
