package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// params reads optional typed values from a query string. The first parse
// failure is kept and later reads become no-ops.
type params struct {
	values url.Values
	err    error
}

func newParams(v url.Values) *params {
	return &params{values: v}
}

func (p *params) raw(name string) (string, bool) {
	if p.err != nil || !p.values.Has(name) {
		return "", false
	}
	return strings.TrimSpace(p.values.Get(name)), true
}

func (p *params) str(name string) *string {
	v, ok := p.raw(name)
	if !ok {
		return nil
	}
	return &v
}

func (p *params) integer(name string) *int {
	v, ok := p.raw(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("%w: %s must be an integer", ErrBadRequest, name)
		return nil
	}
	return &n
}

func (p *params) boolean(name string) *bool {
	v, ok := p.raw(name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = fmt.Errorf("%w: %s must be a boolean", ErrBadRequest, name)
		return nil
	}
	return &b
}

func (p *params) limit() int {
	if n := p.integer("limit"); n != nil {
		return *n
	}
	return 0
}
