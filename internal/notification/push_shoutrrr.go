package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/phibia-app/phibia-go/internal/privacy"
)

const defaultProviderName = "shoutrrr"

// ShoutrrrProvider pushes through every configured shoutrrr URL
// (telegram://, discord://, ntfy://, generic://...).
type ShoutrrrProvider struct {
	name    string
	urls    []string
	accepts []Type
	timeout time.Duration

	sender *router.ServiceRouter
}

// NewShoutrrrProvider returns a provider for urls. Validate must succeed
// before Send. With no types the provider accepts every notification type.
func NewShoutrrrProvider(name string, urls []string, types []Type, timeout time.Duration) *ShoutrrrProvider {
	if name == "" {
		name = defaultProviderName
	}
	return &ShoutrrrProvider{
		name:    name,
		urls:    slices.Clone(urls),
		accepts: slices.Clone(types),
		timeout: timeout,
	}
}

// Name identifies the provider in logs and metrics.
func (s *ShoutrrrProvider) Name() string { return s.name }

// Accepts reports whether t is delivered by this provider.
func (s *ShoutrrrProvider) Accepts(t Type) bool {
	return len(s.accepts) == 0 || slices.Contains(s.accepts, t)
}

// Validate parses the URLs into a sender. Errors are scrubbed of tokens
// embedded in the URLs.
func (s *ShoutrrrProvider) Validate() error {
	if len(s.urls) == 0 {
		return fmt.Errorf("no push URL configured")
	}
	sender, err := shoutrrr.CreateSender(s.urls...)
	if err != nil {
		return privacy.WrapError(err)
	}
	if s.timeout > 0 {
		sender.Timeout = s.timeout
	}
	// failures are reported through Send's return value
	sender.SetLogger(log.New(io.Discard, "", 0))
	s.sender = sender
	return nil
}

// Send pushes n and returns the first failing URL's error.
func (s *ShoutrrrProvider) Send(ctx context.Context, n *Notification) error {
	if s.sender == nil {
		return fmt.Errorf("provider %s used before Validate", s.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}
	errs := s.sender.Send(n.Message, &params)
	if i := slices.IndexFunc(errs, func(err error) bool { return err != nil }); i >= 0 {
		return privacy.WrapError(errs[i])
	}
	return nil
}
