//go:build !linux

package tapdev

import "errors"

var errUnsupported = errors.New("tapdev: TAP devices require linux")

type TAP struct{}

func Open(name string) (*TAP, error)      { return nil, errUnsupported }
func (t *TAP) Name() string               { return "" }
func (t *TAP) Read(b []byte) (int, error) { return 0, errUnsupported }
func (t *TAP) Write(b []byte) (int, error) {
	return 0, errUnsupported
}
func (t *TAP) Close() error { return errUnsupported }
