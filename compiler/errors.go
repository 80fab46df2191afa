package compiler

import "errors"

var (
	ErrUnknownNodeRole   = errors.New("unknown node role")
	ErrMissingDummyState = errors.New("network has no dummy prefix, networks must be compiled before nodes")
	ErrNoInterfaces      = errors.New("node has no interface")
)
