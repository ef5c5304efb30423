// ABOUTME: Scripted in-memory Provider for tests and local development
// ABOUTME: Emits a fixed token sequence, optionally failing partway through

package provider

import "context"

// ScriptedProvider emits a fixed token sequence. If Err is set it is
// returned after FailAfter tokens have been emitted. Requests are recorded
// so tests can assert on the context the caller assembled.
type ScriptedProvider struct {
	Tokens    []string
	Err       error
	FailAfter int

	Requests []Request
}

func (p *ScriptedProvider) Stream(ctx context.Context, req Request, emit func(token string) error) error {
	p.Requests = append(p.Requests, req)

	for i, token := range p.Tokens {
		if p.Err != nil && i >= p.FailAfter {
			return p.Err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := emit(token); err != nil {
			return err
		}
	}
	if p.Err != nil {
		return p.Err
	}
	return nil
}

var _ Provider = (*ScriptedProvider)(nil)
