// Package endpoints turns endpoint configuration into resolved endpoints
// carrying a transport client, account id and region.
package endpoints

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/drblury/queueflow/internal/runtime/config"
	qerrors "github.com/drblury/queueflow/internal/runtime/errors"
	"github.com/drblury/queueflow/internal/runtime/logging"
	"github.com/drblury/queueflow/internal/runtime/transport"
)

const defaultIdentityTimeout = 2500 * time.Millisecond

// Resolver resolves endpoint configuration. It holds the process identity
// cache, so one Resolver should be shared by every client in a process.
type Resolver struct {
	identity   IdentityProvider
	verifier   func(region string) RoleVerifier
	transports *transport.Registry
	logger     logging.ServiceLogger
	timeout    time.Duration

	group  singleflight.Group
	mu     sync.Mutex
	cached *Identity
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithIdentityProvider replaces instance metadata discovery.
func WithIdentityProvider(p IdentityProvider) ResolverOption {
	return func(r *Resolver) { r.identity = p }
}

// WithRoleVerifier replaces the STS caller identity check.
func WithRoleVerifier(v RoleVerifier) ResolverOption {
	return func(r *Resolver) {
		r.verifier = func(string) RoleVerifier { return v }
	}
}

// WithTransportRegistry sets the registry used to build transport clients.
func WithTransportRegistry(reg *transport.Registry) ResolverOption {
	return func(r *Resolver) { r.transports = reg }
}

// WithIdentityTimeout bounds the identity lookup. Defaults to 2.5s.
func WithIdentityTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger logging.ServiceLogger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver returns a Resolver with instance metadata discovery, STS role
// verification and the default transport registry.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		verifier:   func(region string) RoleVerifier { return NewSTSRoleVerifier(region) },
		transports: transport.DefaultRegistry,
		logger:     logging.NopLogger(),
		timeout:    defaultIdentityTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.identity == nil {
		r.identity = NewIMDSIdentity()
	}
	return r
}

// Identity returns the process identity. Concurrent callers share one lookup
// and a successful result is cached for the lifetime of the Resolver. A
// failed lookup is not cached, so a later call tries again.
func (r *Resolver) Identity(ctx context.Context) (Identity, error) {
	r.mu.Lock()
	if r.cached != nil {
		id := *r.cached
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do("identity", func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		id, err := r.identity.Identity(lookupCtx)
		if err != nil {
			return Identity{}, err
		}
		r.mu.Lock()
		r.cached = &id
		r.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return Identity{}, err
	}
	return v.(Identity), nil
}

// Resolve produces one Endpoint per entry. Any failure aborts the whole call
// and no partial map is returned.
func (r *Resolver) Resolve(ctx context.Context, configs map[string]config.EndpointConfig) (map[string]*Endpoint, error) {
	if len(configs) == 0 {
		configs = map[string]config.EndpointConfig{config.DefaultEndpoint: {}}
	}
	names := sortedNames(configs)

	var self Identity
	if needsIdentity(configs) {
		id, err := r.Identity(ctx)
		if err != nil {
			r.logger.Error("Unable to fetch instance identity for endpoint configuration", err, nil)
			return nil, qerrors.NewConfigurationError(qerrors.ErrIdentityUnavailable, "", err)
		}
		self = id
	}

	if err := r.verifyRoles(ctx, configs, names, self); err != nil {
		return nil, err
	}

	resolved := make(map[string]*Endpoint, len(configs))
	for _, name := range names {
		ep, err := r.resolveOne(ctx, name, configs[name], self)
		if err != nil {
			return nil, err
		}
		resolved[name] = ep
	}
	return resolved, nil
}

func (r *Resolver) resolveOne(ctx context.Context, name string, conf config.EndpointConfig, self Identity) (*Endpoint, error) {
	accountID := conf.AccountID
	if accountID == "" {
		accountID = self.AccountID
	}
	tc := conf.Transport
	if tc.Region == "" {
		tc.Region = self.Region
	}

	baseURL, err := BaseURL(tc)
	if err != nil {
		return nil, qerrors.NewConfigurationError(qerrors.ErrInvalidEndpoint, name, err)
	}

	logger := r.logger.With(logging.LogFields{"endpoint": name})
	build := func(ctx context.Context) (transport.Transport, error) {
		return r.transports.Build(ctx, tc, logger)
	}
	client, err := build(ctx)
	if err != nil {
		return nil, qerrors.NewConfigurationError(qerrors.ErrInvalidEndpoint, name, err)
	}

	logger.Info("Resolved queue endpoint", logging.LogFields{
		"account_id": accountID,
		"region":     tc.Region,
		"base_url":   baseURL,
	})
	return &Endpoint{
		Name:      name,
		AccountID: accountID,
		Region:    tc.Region,
		BaseURL:   baseURL,
		build:     build,
		client:    client,
	}, nil
}

func (r *Resolver) verifyRoles(ctx context.Context, configs map[string]config.EndpointConfig, names []string, self Identity) error {
	roles := requiredRoles(configs, names)
	if len(roles) == 0 {
		return nil
	}

	region := self.Region
	for _, name := range names {
		if region != "" {
			break
		}
		region = configs[name].Transport.Region
	}

	arn, err := r.verifier(region).CallerARN(ctx)
	if err != nil {
		return qerrors.NewConfigurationError(qerrors.ErrRoleMismatch, strings.Join(roles, ","), err)
	}
	for _, role := range roles {
		if !strings.Contains(arn, role) {
			return qerrors.NewConfigurationError(qerrors.ErrRoleMismatch, role,
				fmt.Errorf("role is %s but required to contain %s", arn, role))
		}
	}
	return nil
}

// BaseURL returns the queue base URL for a transport config: the explicit
// endpoint when set, otherwise the regional SQS URL.
func BaseURL(tc config.TransportConfig) (string, error) {
	if tc.Endpoint != "" {
		parsed, err := url.Parse(tc.Endpoint)
		if err != nil {
			return "", err
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return "", fmt.Errorf("endpoint %q must be an absolute URL", tc.Endpoint)
		}
		return tc.Endpoint, nil
	}
	if tc.Region == "" {
		return "", fmt.Errorf("region is required when no endpoint URL is configured")
	}
	return "https://sqs." + tc.Region + ".amazonaws.com", nil
}

func needsIdentity(configs map[string]config.EndpointConfig) bool {
	for _, c := range configs {
		if c.AccountID == "" || c.Transport.Region == "" {
			return true
		}
	}
	return false
}

func requiredRoles(configs map[string]config.EndpointConfig, names []string) []string {
	seen := make(map[string]struct{})
	var roles []string
	for _, name := range names {
		role := configs[name].RequiredRole
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

func sortedNames(configs map[string]config.EndpointConfig) []string {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
